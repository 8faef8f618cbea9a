package connection

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func completionConn() *AIConnection {
	return &AIConnection{
		Service:     ServiceCompletion,
		Credentials: AICredentials{Provider: "openai", APIKey: "sk-test", Model: "gpt-4o-mini"},
	}
}

func s3Conn() *DALConnection {
	return &DALConnection{
		Backend: BackendS3,
		Credentials: S3Credentials{
			Region:          "us-east-1",
			AccessKeyID:     "AKIA",
			SecretAccessKey: "secret",
		},
		Context: ObjectContext{Prefix: "raw/"},
	}
}

func TestConnectionJSONRoundTrip(t *testing.T) {
	conns := []ProviderConnection{
		completionConn(),
		&AIConnection{Service: ServiceEmbedding, Credentials: AICredentials{Provider: "openai", APIKey: "k"}},
		s3Conn(),
		&DALConnection{
			Backend:     BackendPostgres,
			Credentials: PostgresCredentials{ConnString: "postgres://u:p@h/db"},
			Context:     RelationalContext{Table: "documents", Schema: "public"},
		},
		&DALConnection{
			Backend:     BackendPinecone,
			Credentials: PineconeCredentials{APIKey: "pc"},
			Context:     VectorContext{Collection: "chunks"},
		},
		&DALConnection{
			Backend:     BackendQdrant,
			Credentials: QdrantCredentials{URL: "http://qdrant:6333"},
			Context:     VectorContext{Collection: "chunks"},
		},
		&DALConnection{
			Backend:     BackendMilvus,
			Credentials: MilvusCredentials{URI: "milvus://host"},
			Context:     VectorContext{Collection: "chunks"},
		},
		&DALConnection{
			Backend:     BackendWeaviate,
			Credentials: WeaviateCredentials{URL: "http://weaviate"},
			Context:     VectorContext{Collection: "Chunk", Namespace: "ws"},
		},
	}

	for _, want := range conns {
		encoded, err := Marshal(want)
		if err != nil {
			t.Fatalf("%s: marshal: %v", Describe(want), err)
		}
		got, err := Unmarshal(encoded)
		if err != nil {
			t.Fatalf("%s: unmarshal: %v", Describe(want), err)
		}
		if Describe(got) != Describe(want) {
			t.Errorf("round trip changed variant: got %s, want %s", Describe(got), Describe(want))
		}
	}
}

func TestConnectionRoundTripPayload(t *testing.T) {
	encoded, err := Marshal(s3Conn())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	decoded, err := Unmarshal(encoded)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	creds, dataCtx, err := DALCredentialsOf(decoded)
	if err != nil {
		t.Fatalf("DALCredentialsOf: %v", err)
	}
	s3, ok := creds.(S3Credentials)
	if !ok {
		t.Fatalf("credentials are %T, want S3Credentials", creds)
	}
	if s3.Region != "us-east-1" || s3.AccessKeyID != "AKIA" {
		t.Errorf("credentials = %+v", s3)
	}
	obj, ok := dataCtx.(ObjectContext)
	if !ok {
		t.Fatalf("context is %T, want ObjectContext", dataCtx)
	}
	if obj.Prefix != "raw/" {
		t.Errorf("context = %+v", obj)
	}
}

func TestUnmarshalRejectsUnknownTags(t *testing.T) {
	cases := []string{
		`{"category":"quantum"}`,
		`{"category":"ai","type":"divination","credentials":{}}`,
		`{"category":"dal","type":"cassette","credentials":{},"context":{}}`,
	}
	for _, c := range cases {
		if _, err := Unmarshal([]byte(c)); err == nil {
			t.Errorf("Unmarshal(%s) succeeded, want error", c)
		}
	}
}

func TestCredentialAccessors(t *testing.T) {
	completion := completionConn()
	embedding := &AIConnection{Service: ServiceEmbedding, Credentials: AICredentials{APIKey: "e"}}
	dal := s3Conn()

	if creds, err := CompletionCredentials(completion); err != nil || creds.APIKey != "sk-test" {
		t.Errorf("CompletionCredentials = %+v, %v", creds, err)
	}
	if _, err := CompletionCredentials(embedding); err == nil {
		t.Error("CompletionCredentials accepted an embedding connection")
	}
	if _, err := CompletionCredentials(dal); err == nil {
		t.Error("CompletionCredentials accepted a DAL connection")
	}

	if creds, err := EmbeddingCredentials(embedding); err != nil || creds.APIKey != "e" {
		t.Errorf("EmbeddingCredentials = %+v, %v", creds, err)
	}
	if _, err := EmbeddingCredentials(completion); err == nil {
		t.Error("EmbeddingCredentials accepted a completion connection")
	}

	if _, _, err := DALCredentialsOf(completion); err == nil {
		t.Error("DALCredentialsOf accepted an AI connection")
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	if !r.IsEmpty() {
		t.Error("new registry is not empty")
	}

	id := uuid.New()
	r.Register(id, completionConn())
	if r.Len() != 1 || r.IsEmpty() {
		t.Errorf("Len = %d after register", r.Len())
	}
	if !r.Contains(id) {
		t.Error("Contains(id) = false after register")
	}

	conn, err := r.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if Describe(conn) != "ai/completion" {
		t.Errorf("Get returned %s", Describe(conn))
	}

	missing := uuid.New()
	_, err = r.Get(missing)
	var notFound NotFoundError
	if !errors.As(err, &notFound) || notFound.ID != missing {
		t.Errorf("Get(missing) = %v, want NotFoundError{%s}", err, missing)
	}

	if removed := r.Remove(id); removed == nil {
		t.Error("Remove returned nil for registered id")
	}
	if r.Remove(id) != nil {
		t.Error("second Remove returned a connection")
	}

	r.Register(uuid.New(), s3Conn())
	r.Clear()
	if !r.IsEmpty() {
		t.Error("registry not empty after Clear")
	}
}
