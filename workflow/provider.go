package workflow

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ProviderParams is the closed set of non-sensitive provider parameters a
// node definition can carry. Credentials themselves live in the connection
// registry; nodes only reference them by id.
type ProviderParams interface {
	isProviderParams()
	providerKind() string

	// CredentialsID returns the id of the connection this provider needs.
	CredentialsID() uuid.UUID
}

// S3Params configures an Amazon S3 provider.
type S3Params struct {
	Credentials uuid.UUID `json:"credentials_id" validate:"required"`
	Bucket      string    `json:"bucket" validate:"required"`
	Prefix      string    `json:"prefix,omitempty"`
}

// GCSParams configures a Google Cloud Storage provider.
type GCSParams struct {
	Credentials uuid.UUID `json:"credentials_id" validate:"required"`
	Bucket      string    `json:"bucket" validate:"required"`
	Prefix      string    `json:"prefix,omitempty"`
}

// AzureBlobParams configures an Azure Blob Storage provider.
type AzureBlobParams struct {
	Credentials uuid.UUID `json:"credentials_id" validate:"required"`
	Container   string    `json:"container" validate:"required"`
	Prefix      string    `json:"prefix,omitempty"`
}

// PostgresParams configures a PostgreSQL table provider.
type PostgresParams struct {
	Credentials uuid.UUID `json:"credentials_id" validate:"required"`
	Table       string    `json:"table" validate:"required"`
	Schema      string    `json:"schema,omitempty"`
}

// MySQLParams configures a MySQL table provider.
type MySQLParams struct {
	Credentials uuid.UUID `json:"credentials_id" validate:"required"`
	Table       string    `json:"table" validate:"required"`
	Database    string    `json:"database,omitempty"`
}

func (S3Params) isProviderParams()        {}
func (GCSParams) isProviderParams()       {}
func (AzureBlobParams) isProviderParams() {}
func (PostgresParams) isProviderParams()  {}
func (MySQLParams) isProviderParams()     {}

func (S3Params) providerKind() string        { return "s3" }
func (GCSParams) providerKind() string       { return "gcs" }
func (AzureBlobParams) providerKind() string { return "azblob" }
func (PostgresParams) providerKind() string  { return "postgres" }
func (MySQLParams) providerKind() string     { return "mysql" }

func (p S3Params) CredentialsID() uuid.UUID        { return p.Credentials }
func (p GCSParams) CredentialsID() uuid.UUID       { return p.Credentials }
func (p AzureBlobParams) CredentialsID() uuid.UUID { return p.Credentials }
func (p PostgresParams) CredentialsID() uuid.UUID  { return p.Credentials }
func (p MySQLParams) CredentialsID() uuid.UUID     { return p.Credentials }

// ReadsBlobs reports whether the provider yields blob data units. Relational
// providers yield records instead.
func ReadsBlobs(p ProviderParams) bool {
	switch p.(type) {
	case S3Params, GCSParams, AzureBlobParams:
		return true
	case PostgresParams, MySQLParams:
		return false
	}
	return false
}

func marshalProviderParams(p ProviderParams) (json.RawMessage, error) {
	if p == nil {
		return nil, fmt.Errorf("provider params missing")
	}
	body, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return tagObject(p.providerKind(), body)
}

func unmarshalProviderParams(raw json.RawMessage) (ProviderParams, error) {
	kind, body, err := untagObject(raw)
	if err != nil {
		return nil, fmt.Errorf("provider params: %w", err)
	}

	switch kind {
	case "s3":
		var p S3Params
		err = json.Unmarshal(body, &p)
		return p, err
	case "gcs":
		var p GCSParams
		err = json.Unmarshal(body, &p)
		return p, err
	case "azblob":
		var p AzureBlobParams
		err = json.Unmarshal(body, &p)
		return p, err
	case "postgres":
		var p PostgresParams
		err = json.Unmarshal(body, &p)
		return p, err
	case "mysql":
		var p MySQLParams
		err = json.Unmarshal(body, &p)
		return p, err
	}
	return nil, fmt.Errorf("unknown provider kind %q", kind)
}
