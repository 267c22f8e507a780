package transport

import "leadconsole_backend/internal/leads/domain"

// OptionalUUID lets request bodies tell "counselorId": null apart from an
// omitted field.
type OptionalUUID = domain.OptionalUUID
