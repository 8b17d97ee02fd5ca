package queue

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/DecisionNerd/infoextract-cidoc/pkg/extraction"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/store"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rabbitmq/amqp091-go"
)

type published struct {
	key string
	msg amqp091.Publishing
}

type fakeChannel struct {
	mu        sync.Mutex
	published []published
	declared  map[string]amqp091.Table
	err       error
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, published{key: key, msg: msg})
	return nil
}

func (f *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error) {
	if f.declared == nil {
		f.declared = map[string]amqp091.Table{}
	}
	f.declared[name] = args
	return amqp091.Queue{Name: name}, nil
}

type fakeAck struct {
	acked   int
	nacked  int
	requeue bool
}

func (a *fakeAck) Ack(tag uint64, multiple bool) error {
	a.acked++
	return nil
}

func (a *fakeAck) Nack(tag uint64, multiple, requeue bool) error {
	a.nacked++
	a.requeue = requeue
	return nil
}

func (a *fakeAck) Reject(tag uint64, requeue bool) error { return nil }

func TestSetupQueues(t *testing.T) {
	ch := &fakeChannel{}
	if err := SetupQueues(ch, []string{ExtractQueue}); err != nil {
		t.Fatal(err)
	}
	if len(ch.declared) != 3 {
		t.Fatalf("declared = %v", ch.declared)
	}
	retry := ch.declared["extract_queue_retry"]
	if retry["x-dead-letter-routing-key"] != ExtractQueue || retry["x-message-ttl"] != int32(10000) {
		t.Fatalf("retry queue args = %v", retry)
	}
	if _, ok := ch.declared["extract_queue_dlq"]; !ok {
		t.Fatal("missing dead-letter queue")
	}
}

func TestPublishFIFO(t *testing.T) {
	ch := &fakeChannel{}
	if err := PublishFIFO(context.Background(), ch, ExtractQueue, []byte(`{"run_id":"r1"}`)); err != nil {
		t.Fatal(err)
	}
	if len(ch.published) != 1 || ch.published[0].key != ExtractQueue || ch.published[0].msg.DeliveryMode != amqp091.Persistent {
		t.Fatalf("published = %+v", ch.published)
	}

	ch.err = errors.New("closed")
	if err := PublishFIFO(context.Background(), ch, ExtractQueue, nil); err == nil {
		t.Fatal("expected publish error")
	}
}

func TestRetryCount(t *testing.T) {
	tests := []struct {
		headers amqp091.Table
		want    int
	}{
		{headers: nil, want: 0},
		{headers: amqp091.Table{"x-retries": int32(3)}, want: 3},
		{headers: amqp091.Table{"x-retries": int64(4)}, want: 4},
		{headers: amqp091.Table{"x-retries": 5}, want: 5},
		{headers: amqp091.Table{"x-retries": "6"}, want: 0},
	}
	for _, tt := range tests {
		if got := RetryCount(tt.headers); got != tt.want {
			t.Errorf("RetryCount(%v) = %d, want %d", tt.headers, got, tt.want)
		}
	}
}

func TestHandleProcessingError(t *testing.T) {
	tests := []struct {
		name        string
		retries     int32
		cause       error
		wantQueue   string
		wantRetries int32
	}{
		{name: "first failure", retries: 0, cause: errors.New("timeout"), wantQueue: "extract_queue_retry", wantRetries: 1},
		{name: "ninth retry", retries: 9, cause: errors.New("timeout"), wantQueue: "extract_queue_retry", wantRetries: 10},
		{name: "exhausted", retries: 10, cause: errors.New("timeout"), wantQueue: "extract_queue_dlq", wantRetries: 10},
		{name: "invalid job", retries: 0, cause: ErrInvalidJob, wantQueue: "extract_queue_dlq", wantRetries: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := &fakeChannel{}
			ack := &fakeAck{}
			headers := amqp091.Table{}
			if tt.retries > 0 {
				headers["x-retries"] = tt.retries
			}
			msg := amqp091.Delivery{Acknowledger: ack, Body: []byte("job"), Headers: headers}

			HandleProcessingError(context.Background(), ch, msg, ExtractQueue, tt.cause)

			if len(ch.published) != 1 || ch.published[0].key != tt.wantQueue {
				t.Fatalf("published = %+v", ch.published)
			}
			if got := RetryCount(ch.published[0].msg.Headers); got != int(tt.wantRetries) {
				t.Fatalf("retries header = %d, want %d", got, tt.wantRetries)
			}
			if ack.acked != 1 || ack.nacked != 0 {
				t.Fatalf("acked=%d nacked=%d", ack.acked, ack.nacked)
			}
		})
	}

	t.Run("publish failure requeues", func(t *testing.T) {
		ch := &fakeChannel{err: errors.New("closed")}
		ack := &fakeAck{}
		HandleProcessingError(context.Background(), ch, amqp091.Delivery{Acknowledger: ack}, ExtractQueue, errors.New("boom"))
		if ack.acked != 0 || ack.nacked != 1 || !ack.requeue {
			t.Fatalf("ack = %+v", ack)
		}
	})
}

func TestDecodeExtractJob(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "text", body: `{"run_id":"r1","text":"Ada was born in London."}`},
		{name: "url", body: `{"run_id":"r1","url":"https://example.org/ada"}`},
		{name: "s3", body: `{"run_id":"r1","s3_key":"bios/ada.txt"}`},
		{name: "missing run id", body: `{"text":"Ada"}`, wantErr: true},
		{name: "no source", body: `{"run_id":"r1"}`, wantErr: true},
		{name: "two sources", body: `{"run_id":"r1","text":"Ada","s3_key":"k"}`, wantErr: true},
		{name: "bad url", body: `{"run_id":"r1","url":"not a url"}`, wantErr: true},
		{name: "not json", body: `{`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeExtractJob([]byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidJob) {
				t.Fatalf("error should wrap ErrInvalidJob: %v", err)
			}
		})
	}
}

type fakeResolver struct {
	texts []string
	err   error
}

func (f *fakeResolver) ExtractAndResolve(ctx context.Context, text string) (extraction.Result, error) {
	f.texts = append(f.texts, text)
	if f.err != nil {
		return extraction.Result{}, f.err
	}
	return extraction.Resolve(extraction.LiteResult{
		Entities: []extraction.LiteEntity{
			{RefID: "person_1", EntityType: "Person", Label: "Ada Lovelace", Confidence: 0.9},
			{RefID: "event_1", EntityType: "Event", Label: "Birth of Ada", Confidence: 0.9},
			{RefID: "place_1", EntityType: "Place", Label: "London", Confidence: 0.9},
		},
		Relationships: []extraction.LiteRelationship{
			{SourceRef: "event_1", TargetRef: "person_1", PropertyCode: "P11", Confidence: 0.9},
			{SourceRef: "event_1", TargetRef: "place_1", PropertyCode: "P7", Confidence: 0.9},
		},
	}), nil
}

type fakeStore struct {
	saved  map[string]*extraction.Result
	failed map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{saved: map[string]*extraction.Result{}, failed: map[string]string{}}
}

func (f *fakeStore) SaveResult(ctx context.Context, runID string, result *extraction.Result) error {
	f.saved[runID] = result
	return nil
}

func (f *fakeStore) LoadResult(ctx context.Context, runID string) (*extraction.Result, error) {
	return f.saved[runID], nil
}

func (f *fakeStore) MarkFailed(ctx context.Context, runID string, reason string) error {
	f.failed[runID] = reason
	return nil
}

type stubLoader map[string]string

func (s stubLoader) Load(ctx context.Context, location string) (string, error) {
	text, ok := s[location]
	if !ok {
		return "", errors.New("not found")
	}
	return text, nil
}

type recordingPutter struct {
	keys  []string
	fails int
}

func (r *recordingPutter) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if r.fails > 0 {
		r.fails--
		return nil, errors.New("slow down")
	}
	r.keys = append(r.keys, *params.Key)
	return &s3.PutObjectOutput{}, nil
}

func TestProcessExtractMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("text job", func(t *testing.T) {
		st := newFakeStore()
		exports := &recordingPutter{}
		p := &Processor{Resolver: &fakeResolver{}, Store: st, Exports: exports, ExportBucket: "bios"}

		if err := p.ProcessExtractMessage(ctx, []byte(`{"run_id":"r1","text":"Ada Lovelace was born in London."}`)); err != nil {
			t.Fatalf("ProcessExtractMessage() error = %v", err)
		}
		res := st.saved["r1"]
		if res == nil || len(res.Entities) != 3 || len(res.Relationships) != 2 {
			t.Fatalf("saved = %+v", res)
		}
		validation, ok := res.Metadata["validation"].(map[string]any)
		if _, hasValid := validation["valid"]; !ok || !hasValid {
			t.Fatalf("validation metadata = %v", res.Metadata["validation"])
		}
		if len(exports.keys) != 2 {
			t.Fatalf("exports = %v", exports.keys)
		}
		for _, k := range exports.keys {
			if !strings.HasPrefix(k, "exports/r1/result.") {
				t.Fatalf("unexpected export key %q", k)
			}
		}
	})

	t.Run("url and s3 jobs use their loaders", func(t *testing.T) {
		resolver := &fakeResolver{}
		p := &Processor{
			Resolver: resolver,
			Store:    newFakeStore(),
			Web:      stubLoader{"https://example.org/ada": "web text"},
			S3:       stubLoader{"bios/ada.txt": "s3 text"},
		}
		if err := p.ProcessExtractMessage(ctx, []byte(`{"run_id":"r2","url":"https://example.org/ada"}`)); err != nil {
			t.Fatal(err)
		}
		if err := p.ProcessExtractMessage(ctx, []byte(`{"run_id":"r3","s3_key":"bios/ada.txt"}`)); err != nil {
			t.Fatal(err)
		}
		if len(resolver.texts) != 2 || resolver.texts[0] != "web text" || resolver.texts[1] != "s3 text" {
			t.Fatalf("texts = %v", resolver.texts)
		}
	})

	t.Run("disabled source is permanent", func(t *testing.T) {
		st := newFakeStore()
		p := &Processor{Resolver: &fakeResolver{}, Store: st}
		err := p.ProcessExtractMessage(ctx, []byte(`{"run_id":"r4","url":"https://example.org/ada"}`))
		if !errors.Is(err, ErrInvalidJob) {
			t.Fatalf("expected ErrInvalidJob, got %v", err)
		}
		if _, ok := st.failed["r4"]; !ok {
			t.Fatal("run should be marked failed")
		}
	})

	t.Run("extraction failure marks run", func(t *testing.T) {
		st := newFakeStore()
		p := &Processor{Resolver: &fakeResolver{err: errors.New("model unavailable")}, Store: st}
		err := p.ProcessExtractMessage(ctx, []byte(`{"run_id":"r5","text":"Ada"}`))
		if err == nil || errors.Is(err, ErrInvalidJob) {
			t.Fatalf("expected a retryable error, got %v", err)
		}
		if !strings.Contains(st.failed["r5"], "model unavailable") {
			t.Fatalf("failed = %v", st.failed)
		}
		if _, ok := st.saved["r5"]; ok {
			t.Fatal("failed run must not be saved")
		}
	})

	t.Run("export retries transient failures", func(t *testing.T) {
		exports := &recordingPutter{fails: 2}
		p := &Processor{Resolver: &fakeResolver{}, Store: newFakeStore(), Exports: exports, ExportBucket: "bios"}
		if err := p.ProcessExtractMessage(ctx, []byte(`{"run_id":"r8","text":"Ada"}`)); err != nil {
			t.Fatal(err)
		}
		if len(exports.keys) != 2 {
			t.Fatalf("exports = %v", exports.keys)
		}
	})

	t.Run("leased run", func(t *testing.T) {
		st := newFakeStore()
		leases := &fakeLeases{}
		p := &Processor{Resolver: &fakeResolver{}, Store: st, Leases: leases}
		if err := p.ProcessExtractMessage(ctx, []byte(`{"run_id":"r6","text":"Ada"}`)); err != nil {
			t.Fatal(err)
		}
		if len(leases.runs) != 1 || leases.runs[0] != "r6" {
			t.Fatalf("leases = %v", leases.runs)
		}

		leases.busy = true
		err := p.ProcessExtractMessage(ctx, []byte(`{"run_id":"r7","text":"Ada"}`))
		if !errors.Is(err, store.ErrRunBusy) {
			t.Fatalf("expected ErrRunBusy, got %v", err)
		}
		if _, ok := st.failed["r7"]; ok {
			t.Fatal("a busy run must not be marked failed")
		}
	})
}

type fakeLeases struct {
	busy bool
	runs []string
}

func (f *fakeLeases) WithRunLease(ctx context.Context, runID string, fn func(ctx context.Context) error) error {
	if f.busy {
		return store.ErrRunBusy
	}
	f.runs = append(f.runs, runID)
	return fn(ctx)
}
