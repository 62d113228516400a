package canonical

import (
	"strings"
	"testing"

	"github.com/larderlab/larder/pkg/errors"
	"github.com/larderlab/larder/pkg/ontology"
)

func testRegistry() *ontology.Registry {
	transforms := []ontology.Transform{
		{
			ID: "tf:ferment", Identity: true, Order: 10,
			Params: []ontology.ParamSpec{
				{Name: "starter", Type: ontology.ParamEnum, Identity: true, Enum: []string{"yogurt_thermo", "yogurt_meso"}},
				{Name: "hours", Type: ontology.ParamNumber, Identity: false},
			},
		},
		{ID: "tf:strain", Identity: true, Order: 20},
		{ID: "tf:wash", Identity: false, Order: 1},
		{
			ID: "tf:cook", Identity: true, Order: 5,
			Params: []ontology.ParamSpec{
				{Name: "temp_c", Type: ontology.ParamNumber, Identity: true},
				{Name: "covered", Type: ontology.ParamBool, Identity: true},
			},
		},
	}
	return ontology.NewRegistry(transforms, nil, nil, nil)
}

func yogurtSteps() []ontology.Step {
	return []ontology.Step{
		{Transform: "tf:ferment", Params: map[string]any{"starter": "yogurt_thermo"}},
		{Transform: "tf:strain"},
	}
}

func TestCanonicalizeComposesID(t *testing.T) {
	c := New(testRegistry(), nil)
	tpt, err := c.Canonicalize(Candidate{
		Taxon:  "tx:animalia:chordata:mammalia:artiodactyla:bovidae:bos:taurus",
		Part:   "part:milk",
		Family: "DAIRY_YOGURT",
		Steps:  yogurtSteps(),
	})
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}

	prefix := "tpt:tx:animalia:chordata:mammalia:artiodactyla:bovidae:bos:taurus:part:milk:DAIRY_YOGURT:"
	if !strings.HasPrefix(tpt.ID, prefix) {
		t.Fatalf("id = %q, want prefix %q", tpt.ID, prefix)
	}
	hash := strings.TrimPrefix(tpt.ID, prefix)
	if len(hash) != HashLen {
		t.Errorf("hash %q should be %d hex chars", hash, HashLen)
	}
	for _, r := range hash {
		if !strings.ContainsRune("0123456789abcdef", r) {
			t.Errorf("hash %q contains non-hex rune %q", hash, r)
		}
	}
}

func TestCanonicalizeOrderIndependent(t *testing.T) {
	c := New(testRegistry(), nil)

	forward, err := c.Canonicalize(Candidate{
		Taxon: "tx:animalia:bos", Part: "part:milk", Family: "DAIRY_YOGURT",
		Steps: yogurtSteps(),
	})
	if err != nil {
		t.Fatal(err)
	}

	// Same two steps in reverse authoring order.
	reversed, err := c.Canonicalize(Candidate{
		Taxon: "tx:animalia:bos", Part: "part:milk", Family: "DAIRY_YOGURT",
		Steps: []ontology.Step{
			{Transform: "tf:strain"},
			{Transform: "tf:ferment", Params: map[string]any{"starter": "yogurt_thermo"}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	if forward.ID != reversed.ID {
		t.Errorf("authoring order changed identity: %q vs %q", forward.ID, reversed.ID)
	}
}

func TestCanonicalizePermutationsHashIdentically(t *testing.T) {
	c := New(testRegistry(), nil)
	steps := []ontology.Step{
		{Transform: "tf:cook", Params: map[string]any{"temp_c": 100.0, "covered": true}},
		{Transform: "tf:ferment", Params: map[string]any{"starter": "yogurt_meso"}},
		{Transform: "tf:strain"},
	}

	perms := [][]int{
		{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0},
	}
	var first string
	for _, p := range perms {
		permuted := []ontology.Step{steps[p[0]], steps[p[1]], steps[p[2]]}
		tpt, err := c.Canonicalize(Candidate{Taxon: "tx:animalia:bos", Part: "part:milk", Steps: permuted})
		if err != nil {
			t.Fatal(err)
		}
		if first == "" {
			first = tpt.ID
		} else if tpt.ID != first {
			t.Errorf("permutation %v hashed to %q, want %q", p, tpt.ID, first)
		}
	}
}

func TestCanonicalizeStripsNonIdentity(t *testing.T) {
	c := New(testRegistry(), nil)

	withWash := append([]ontology.Step{{Transform: "tf:wash"}}, yogurtSteps()...)
	a, err := c.Canonicalize(Candidate{Taxon: "tx:animalia:bos", Part: "part:milk", Steps: withWash})
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.Canonicalize(Candidate{Taxon: "tx:animalia:bos", Part: "part:milk", Steps: yogurtSteps()})
	if err != nil {
		t.Fatal(err)
	}
	if a.ID != b.ID {
		t.Error("non-identity step must not affect identity")
	}

	// Non-identity parameters are stripped too.
	withHours, err := c.Canonicalize(Candidate{Taxon: "tx:animalia:bos", Part: "part:milk", Steps: []ontology.Step{
		{Transform: "tf:ferment", Params: map[string]any{"starter": "yogurt_thermo", "hours": 8.0}},
		{Transform: "tf:strain"},
	}})
	if err != nil {
		t.Fatal(err)
	}
	if withHours.ID != b.ID {
		t.Error("non-identity parameter must not affect identity")
	}
}

func TestCanonicalizeRejections(t *testing.T) {
	c := New(testRegistry(), nil)

	_, err := c.Canonicalize(Candidate{Taxon: "tx:a", Part: "part:milk", Steps: []ontology.Step{
		{Transform: "tf:nonexistent"},
	}})
	if !errors.Is(err, errors.CodeInvalidTransform) {
		t.Errorf("unknown transform should reject with invalid-transform, got %v", err)
	}

	_, err = c.Canonicalize(Candidate{Taxon: "tx:a", Part: "part:milk", Steps: []ontology.Step{
		{Transform: "tf:ferment", Params: map[string]any{"mystery": 1.0}},
	}})
	if !errors.Is(err, errors.CodeIdentityParam) {
		t.Errorf("unknown parameter should reject, got %v", err)
	}

	_, err = c.Canonicalize(Candidate{Taxon: "tx:a", Part: "part:milk", Steps: []ontology.Step{
		{Transform: "tf:ferment", Params: map[string]any{"starter": "kefir"}},
	}})
	if !errors.Is(err, errors.CodeIdentityParam) {
		t.Errorf("enum violation should reject, got %v", err)
	}

	_, err = c.Canonicalize(Candidate{Taxon: "tx:a", Part: "part:milk", Steps: []ontology.Step{
		{Transform: "tf:cook", Params: map[string]any{"temp_c": "hot"}},
	}})
	if !errors.Is(err, errors.CodeIdentityParam) {
		t.Errorf("type mismatch should reject, got %v", err)
	}
}

func TestBucketingBoundaries(t *testing.T) {
	buckets := []ontology.Bucket{{
		Key:     "tf:cook.temp_c",
		Cutoffs: []float64{0, 120},
		Labels:  []string{"none", "low", "high"},
	}}
	c := New(testRegistry(), buckets)

	tests := []struct {
		value float64
		label string
	}{
		{0, "none"},
		{50, "low"},
		{120, "low"},
		{121, "high"},
	}
	for _, tt := range tests {
		steps, err := c.CanonicalSteps([]ontology.Step{
			{Transform: "tf:cook", Params: map[string]any{"temp_c": tt.value}},
		})
		if err != nil {
			t.Fatal(err)
		}
		if got := steps[0].Params["temp_c"]; got != tt.label {
			t.Errorf("temp_c=%v bucketed to %v, want %q", tt.value, got, tt.label)
		}
	}
}

func TestBucketingStabilizesHash(t *testing.T) {
	buckets := []ontology.Bucket{{
		Key:     "tf:cook.temp_c",
		Cutoffs: []float64{0, 120},
		Labels:  []string{"none", "low", "high"},
	}}
	c := New(testRegistry(), buckets)

	at50, err := c.Canonicalize(Candidate{Taxon: "tx:a", Part: "part:milk", Steps: []ontology.Step{
		{Transform: "tf:cook", Params: map[string]any{"temp_c": 50.0}},
	}})
	if err != nil {
		t.Fatal(err)
	}
	at120, err := c.Canonicalize(Candidate{Taxon: "tx:a", Part: "part:milk", Steps: []ontology.Step{
		{Transform: "tf:cook", Params: map[string]any{"temp_c": 120.0}},
	}})
	if err != nil {
		t.Fatal(err)
	}
	at121, err := c.Canonicalize(Candidate{Taxon: "tx:a", Part: "part:milk", Steps: []ontology.Step{
		{Transform: "tf:cook", Params: map[string]any{"temp_c": 121.0}},
	}})
	if err != nil {
		t.Fatal(err)
	}

	if at50.ID != at120.ID {
		t.Error("values in the same bucket must hash identically")
	}
	if at120.ID == at121.ID {
		t.Error("values in different buckets must hash differently")
	}
}

func TestSerializeNumbers(t *testing.T) {
	steps := []ontology.CanonicalStep{{
		Transform: "tf:cook",
		Params:    map[string]any{"temp_c": 120.0, "ratio": 0.5, "covered": true},
	}}
	got := Serialize(steps)
	want := `[{"t":"tf:cook","p":{"covered":true,"ratio":0.5,"temp_c":120}}]`
	if got != want {
		t.Errorf("Serialize = %s, want %s", got, want)
	}
}

func TestCollisionLedger(t *testing.T) {
	l := NewCollisionLedger()

	// Idempotent registration: same payload keeps the id.
	if id := l.Register("tpt:x", "payload-a", "seeds:1"); id != "tpt:x" {
		t.Errorf("first registration = %q", id)
	}
	if id := l.Register("tpt:x", "payload-a", "seeds:2"); id != "tpt:x" {
		t.Errorf("idempotent registration = %q", id)
	}
	if len(l.Collisions()) != 0 {
		t.Error("no collision expected yet")
	}

	// Different payload, same id: suffix, record, never overwrite.
	if id := l.Register("tpt:x", "payload-b", "seeds:3"); id != "tpt:x-1" {
		t.Errorf("colliding registration = %q, want tpt:x-1", id)
	}
	cols := l.Collisions()
	if len(cols) != 1 {
		t.Fatalf("collisions = %d, want 1", len(cols))
	}
	if cols[0].FirstOrigin != "seeds:1" || cols[0].SecondOrigin != "seeds:3" {
		t.Errorf("collision origins = %+v", cols[0])
	}
}
