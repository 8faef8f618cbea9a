// Package connection models decrypted provider connections: the tagged
// AI/DAL union, the in-memory registry consulted during compilation, and the
// store-backed loader that decrypts persisted connection records with
// workspace-derived keys.
package connection

import (
	"encoding/json"
	"fmt"
)

// AIService selects which AI capability a connection provides. The same
// credential shape serves both; the service tag records what the connection
// was registered for.
type AIService string

const (
	ServiceCompletion AIService = "completion"
	ServiceEmbedding  AIService = "embedding"
)

// AICredentials authenticate against an AI provider API. AI connections
// carry no read/write context; they call external APIs.
type AICredentials struct {
	Provider string `json:"provider"`
	APIKey   string `json:"api_key"`
	BaseURL  string `json:"base_url,omitempty"`
	Model    string `json:"model,omitempty"`
}

// AIConnection is an AI provider connection: completion or embedding.
type AIConnection struct {
	Service     AIService
	Credentials AICredentials
}

// Backend identifies a DAL connection variant.
type Backend string

const (
	BackendPostgres Backend = "postgres"
	BackendS3       Backend = "s3"
	BackendPinecone Backend = "pinecone"
	BackendQdrant   Backend = "qdrant"
	BackendMilvus   Backend = "milvus"
	BackendWeaviate Backend = "weaviate"
)

// DALCredentials is the closed set of data-access credential shapes.
type DALCredentials interface {
	isDALCredentials()
	backend() Backend
}

// PostgresCredentials authenticate against a PostgreSQL database.
type PostgresCredentials struct {
	ConnString string `json:"conn_string"`
}

// S3Credentials authenticate against S3 or an S3-compatible store.
type S3Credentials struct {
	Region          string `json:"region"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	Endpoint        string `json:"endpoint,omitempty"`
}

// PineconeCredentials authenticate against Pinecone.
type PineconeCredentials struct {
	APIKey string `json:"api_key"`
}

// QdrantCredentials authenticate against Qdrant.
type QdrantCredentials struct {
	URL    string `json:"url"`
	APIKey string `json:"api_key,omitempty"`
}

// MilvusCredentials authenticate against Milvus.
type MilvusCredentials struct {
	URI   string `json:"uri"`
	Token string `json:"token,omitempty"`
}

// WeaviateCredentials authenticate against Weaviate.
type WeaviateCredentials struct {
	URL    string `json:"url"`
	APIKey string `json:"api_key,omitempty"`
}

func (PostgresCredentials) isDALCredentials() {}
func (S3Credentials) isDALCredentials()       {}
func (PineconeCredentials) isDALCredentials() {}
func (QdrantCredentials) isDALCredentials()   {}
func (MilvusCredentials) isDALCredentials()   {}
func (WeaviateCredentials) isDALCredentials() {}

func (PostgresCredentials) backend() Backend { return BackendPostgres }
func (S3Credentials) backend() Backend       { return BackendS3 }
func (PineconeCredentials) backend() Backend { return BackendPinecone }
func (QdrantCredentials) backend() Backend   { return BackendQdrant }
func (MilvusCredentials) backend() Backend   { return BackendMilvus }
func (WeaviateCredentials) backend() Backend { return BackendWeaviate }

// DataContext is the closed set of read/write context shapes. Relational
// backends use tables, object stores use key prefixes, vector databases use
// collections.
type DataContext interface {
	isDataContext()
	contextKind() string
}

// RelationalContext describes what to read from or write to a table.
type RelationalContext struct {
	Table      string `json:"table"`
	Schema     string `json:"schema,omitempty"`
	Cursor     string `json:"cursor,omitempty"`
	Tiebreaker string `json:"tiebreaker,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// ObjectContext describes what to read from or write to an object store.
type ObjectContext struct {
	Prefix string `json:"prefix,omitempty"`
	Token  string `json:"token,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// VectorContext describes which vector collection to address.
type VectorContext struct {
	Collection string `json:"collection"`
	Namespace  string `json:"namespace,omitempty"`
}

func (RelationalContext) isDataContext() {}
func (ObjectContext) isDataContext()     {}
func (VectorContext) isDataContext()     {}

func (RelationalContext) contextKind() string { return "relational" }
func (ObjectContext) contextKind() string     { return "object" }
func (VectorContext) contextKind() string     { return "vector" }

// DALConnection pairs data-access credentials with a context describing what
// to read or write. The backend tags the variant; credentials and context
// shapes must agree with it.
type DALConnection struct {
	Backend     Backend
	Credentials DALCredentials
	Context     DataContext
}

// ProviderConnection is the top-level connection union. This is the type
// that is encrypted and persisted as a workspace connection.
type ProviderConnection interface {
	isProviderConnection()
	category() string
}

func (*AIConnection) isProviderConnection()  {}
func (*DALConnection) isProviderConnection() {}

func (*AIConnection) category() string  { return "ai" }
func (*DALConnection) category() string { return "dal" }

// CompletionCredentials extracts completion credentials, failing when the
// connection is anything else.
func CompletionCredentials(c ProviderConnection) (AICredentials, error) {
	ai, ok := c.(*AIConnection)
	if !ok || ai.Service != ServiceCompletion {
		return AICredentials{}, fmt.Errorf("expected completion connection, got %s", Describe(c))
	}
	return ai.Credentials, nil
}

// EmbeddingCredentials extracts embedding credentials, failing when the
// connection is anything else.
func EmbeddingCredentials(c ProviderConnection) (AICredentials, error) {
	ai, ok := c.(*AIConnection)
	if !ok || ai.Service != ServiceEmbedding {
		return AICredentials{}, fmt.Errorf("expected embedding connection, got %s", Describe(c))
	}
	return ai.Credentials, nil
}

// DALCredentialsOf extracts data-access credentials and context, failing
// when the connection is an AI connection.
func DALCredentialsOf(c ProviderConnection) (DALCredentials, DataContext, error) {
	dal, ok := c.(*DALConnection)
	if !ok {
		return nil, nil, fmt.Errorf("expected DAL connection, got %s", Describe(c))
	}
	return dal.Credentials, dal.Context, nil
}

// Describe returns a short category/type label for a connection,
// suitable for error messages and listings.
func Describe(c ProviderConnection) string {
	switch conn := c.(type) {
	case *AIConnection:
		return fmt.Sprintf("ai/%s", conn.Service)
	case *DALConnection:
		return fmt.Sprintf("dal/%s", conn.Backend)
	case nil:
		return "nil"
	}
	return "unknown"
}

type aiEnvelope struct {
	Category    string        `json:"category"`
	Type        AIService     `json:"type"`
	Credentials AICredentials `json:"credentials"`
}

type dalEnvelope struct {
	Category    string          `json:"category"`
	Type        Backend         `json:"type"`
	Credentials json.RawMessage `json:"credentials"`
	Context     json.RawMessage `json:"context"`
}

// MarshalJSON encodes the connection with category and type discriminators.
func (c *AIConnection) MarshalJSON() ([]byte, error) {
	return json.Marshal(aiEnvelope{Category: "ai", Type: c.Service, Credentials: c.Credentials})
}

// UnmarshalJSON decodes the envelope produced by MarshalJSON.
func (c *AIConnection) UnmarshalJSON(b []byte) error {
	var env aiEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}
	switch env.Type {
	case ServiceCompletion, ServiceEmbedding:
	default:
		return fmt.Errorf("unknown ai connection type %q", env.Type)
	}
	c.Service = env.Type
	c.Credentials = env.Credentials
	return nil
}

// MarshalJSON encodes the connection with category and type discriminators.
func (c *DALConnection) MarshalJSON() ([]byte, error) {
	if c.Credentials == nil || c.Context == nil {
		return nil, fmt.Errorf("dal connection missing credentials or context")
	}
	if c.Credentials.backend() != c.Backend {
		return nil, fmt.Errorf("dal credentials are for %s, connection is %s",
			c.Credentials.backend(), c.Backend)
	}
	creds, err := json.Marshal(c.Credentials)
	if err != nil {
		return nil, err
	}
	dataCtx, err := json.Marshal(c.Context)
	if err != nil {
		return nil, err
	}
	return json.Marshal(dalEnvelope{
		Category:    "dal",
		Type:        c.Backend,
		Credentials: creds,
		Context:     dataCtx,
	})
}

// UnmarshalJSON decodes the envelope produced by MarshalJSON, resolving the
// credential and context shapes from the backend tag.
func (c *DALConnection) UnmarshalJSON(b []byte) error {
	var env dalEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}

	var (
		creds   DALCredentials
		dataCtx DataContext
		err     error
	)
	switch env.Type {
	case BackendPostgres:
		var cr PostgresCredentials
		var cx RelationalContext
		err = decodePair(env, &cr, &cx)
		creds, dataCtx = cr, cx
	case BackendS3:
		var cr S3Credentials
		var cx ObjectContext
		err = decodePair(env, &cr, &cx)
		creds, dataCtx = cr, cx
	case BackendPinecone:
		var cr PineconeCredentials
		var cx VectorContext
		err = decodePair(env, &cr, &cx)
		creds, dataCtx = cr, cx
	case BackendQdrant:
		var cr QdrantCredentials
		var cx VectorContext
		err = decodePair(env, &cr, &cx)
		creds, dataCtx = cr, cx
	case BackendMilvus:
		var cr MilvusCredentials
		var cx VectorContext
		err = decodePair(env, &cr, &cx)
		creds, dataCtx = cr, cx
	case BackendWeaviate:
		var cr WeaviateCredentials
		var cx VectorContext
		err = decodePair(env, &cr, &cx)
		creds, dataCtx = cr, cx
	default:
		return fmt.Errorf("unknown dal connection type %q", env.Type)
	}
	if err != nil {
		return err
	}

	c.Backend = env.Type
	c.Credentials = creds
	c.Context = dataCtx
	return nil
}

func decodePair(env dalEnvelope, creds, dataCtx any) error {
	if err := json.Unmarshal(env.Credentials, creds); err != nil {
		return fmt.Errorf("decode %s credentials: %w", env.Type, err)
	}
	if err := json.Unmarshal(env.Context, dataCtx); err != nil {
		return fmt.Errorf("decode %s context: %w", env.Type, err)
	}
	return nil
}

// Marshal encodes any provider connection to its persisted JSON form.
func Marshal(c ProviderConnection) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("connection is nil")
	}
	return json.Marshal(c)
}

// Unmarshal decodes a provider connection from its persisted JSON form,
// dispatching on the category discriminator.
func Unmarshal(b []byte) (ProviderConnection, error) {
	var probe struct {
		Category string `json:"category"`
	}
	if err := json.Unmarshal(b, &probe); err != nil {
		return nil, err
	}
	switch probe.Category {
	case "ai":
		var c AIConnection
		if err := json.Unmarshal(b, &c); err != nil {
			return nil, err
		}
		return &c, nil
	case "dal":
		var c DALConnection
		if err := json.Unmarshal(b, &c); err != nil {
			return nil, err
		}
		return &c, nil
	}
	return nil, fmt.Errorf("unknown connection category %q", probe.Category)
}
