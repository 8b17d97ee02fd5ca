package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/DecisionNerd/infoextract-cidoc/pkg/extraction"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordRun(t *testing.T) {
	before := testutil.ToFloat64(RunsTotal.WithLabelValues("text", "error"))
	RecordRun("text", time.Now(), errors.New("boom"))
	RecordRun("text", time.Now(), nil)

	if got := testutil.ToFloat64(RunsTotal.WithLabelValues("text", "error")); got != before+1 {
		t.Fatalf("error runs = %v, want %v", got, before+1)
	}
	if got := testutil.ToFloat64(RunsTotal.WithLabelValues("text", "success")); got < 1 {
		t.Fatalf("success runs = %v", got)
	}
}

func TestRecordResult(t *testing.T) {
	before := testutil.ToFloat64(ResolvedTotal.WithLabelValues("dropped"))
	result := extraction.Resolve(extraction.LiteResult{
		Entities: []extraction.LiteEntity{{RefID: "person_1", EntityType: "Person", Label: "Ada Lovelace", Confidence: 0.9}},
		Relationships: []extraction.LiteRelationship{
			{SourceRef: "event_1", TargetRef: "person_1", PropertyCode: "P98", Confidence: 0.9},
		},
	})
	RecordResult(&result)

	if got := testutil.ToFloat64(ResolvedTotal.WithLabelValues("dropped")); got != before+1 {
		t.Fatalf("dropped = %v, want %v", got, before+1)
	}
}
