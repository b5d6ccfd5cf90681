package domain

// OwnerKey partitions every collection and channel. It is the user id issued
// by the auth provider.
type OwnerKey string

// RequestContext carries authenticated user info when available.
type RequestContext struct {
	Owner OwnerKey `json:"owner"`
	Role  string   `json:"role"`
}
