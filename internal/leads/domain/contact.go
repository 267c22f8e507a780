package domain

import (
	"regexp"
	"strings"
)

// ContactKeywords mark a comment as documenting a real contact attempt.
var ContactKeywords = []string{
	"call", "called", "calling",
	"spoke", "spoken", "talked", "discussed",
	"met", "meeting",
	"whatsapp", "whatsapped", "messaged", "texted", "emailed",
	"contacted", "connected", "booked",
}

var contactKeywordPattern = regexp.MustCompile(`(?i)\b(` + strings.Join(ContactKeywords, "|") + `)\b`)

// MentionsContact reports whether text contains a contact keyword as a whole word.
func MentionsContact(text string) bool {
	return contactKeywordPattern.MatchString(text)
}

// ShouldTouchLastContacted decides whether a status change counts as contact.
func ShouldTouchLastContacted(newStatus, comment string) bool {
	return IsContactImplyingStatus(newStatus) || MentionsContact(comment)
}
