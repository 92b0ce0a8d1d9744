package upstream

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// newTestAdapter points an Adapter at a local httptest server, standing in
// for S3 with path-style addressing, the same shape NewCredentialed
// produces against a real endpoint.
func newTestAdapter(t *testing.T, handler http.HandlerFunc) (*Adapter, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)

	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
	)
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(srv.URL)
		o.UsePathStyle = true
	})
	return NewFromClient(client), srv
}

func TestAdapter_ListBuckets(t *testing.T) {
	adapter, srv := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>
<ListAllMyBucketsResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Buckets><Bucket><Name>demo-bucket</Name></Bucket></Buckets>
</ListAllMyBucketsResult>`)
	})
	defer srv.Close()

	buckets, err := adapter.ListBuckets(context.Background())
	if err != nil {
		t.Fatalf("ListBuckets: %v", err)
	}
	if len(buckets) != 1 || buckets[0].Name != "demo-bucket" {
		t.Fatalf("got %+v", buckets)
	}
}

func TestAdapter_ListObjects(t *testing.T) {
	adapter, srv := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Contents><Key>song.mp3</Key><Size>2048</Size></Contents>
</ListBucketResult>`)
	})
	defer srv.Close()

	objects, err := adapter.ListObjects(context.Background(), "demo-bucket")
	if err != nil {
		t.Fatalf("ListObjects: %v", err)
	}
	if len(objects) != 1 || objects[0].Key != "song.mp3" || objects[0].Size != 2048 {
		t.Fatalf("got %+v", objects)
	}
}

func TestAdapter_GetRange_SendsRangeHeaderAndReturnsExactBytes(t *testing.T) {
	var gotRange string
	body := []byte("hello range world")

	adapter, srv := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		gotRange = r.Header.Get("Range")
		w.Header().Set("Content-Length", "5")
		w.WriteHeader(http.StatusPartialContent)
		w.Write(body[0:5])
	})
	defer srv.Close()

	got, err := adapter.GetRange(context.Background(), "demo-bucket", "song.mp3", 0, 5)
	if err != nil {
		t.Fatalf("GetRange: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}
	if gotRange != "bytes=0-4" {
		t.Fatalf("Range header = %q, want bytes=0-4", gotRange)
	}
}

func TestAdapter_GetRange_ShortReadErrors(t *testing.T) {
	adapter, srv := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "5")
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte("ab")) // short
	})
	defer srv.Close()

	if _, err := adapter.GetRange(context.Background(), "demo-bucket", "song.mp3", 0, 5); err == nil {
		t.Fatal("expected error on short read")
	}
}
