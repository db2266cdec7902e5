package directory

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

type fakeLookup struct {
	byNumber map[string][]string
	err      error
	calls    []string
}

func (f *fakeLookup) OrganizationsByNumber(_ context.Context, normalized string) ([]string, error) {
	f.calls = append(f.calls, normalized)
	if f.err != nil {
		return nil, f.err
	}
	return f.byNumber[normalized], nil
}

func newTestDirectory(t *testing.T, lookup Lookup) *Directory {
	t.Helper()
	d, err := New(lookup)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return d
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"+598 99 123 456":  "59899123456",
		"(099) 123-456":    "099123456",
		"whatsapp:+59899x": "59899",
		"":                 "",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestResolveEquivalentRepresentations(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		stored string
		inputs []string
	}{
		{
			name:   "stored with country code",
			stored: "59899123456",
			inputs: []string{"+598 99 123 456", "59899123456", "99123456", "99-123-456"},
		},
		{
			name:   "stored without country code",
			stored: "99123456",
			inputs: []string{"+598 99 123 456", "59899123456", "99 123 456"},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			d := newTestDirectory(t, &fakeLookup{byNumber: map[string][]string{tc.stored: {"org-1", "org-2"}}})
			for _, in := range tc.inputs {
				got, err := d.Resolve(context.Background(), in)
				if err != nil {
					t.Fatalf("Resolve(%q) error = %v", in, err)
				}
				if !reflect.DeepEqual(got, []string{"org-1", "org-2"}) {
					t.Fatalf("Resolve(%q) = %v", in, got)
				}
			}
		})
	}
}

func TestResolveUnknownIsEmpty(t *testing.T) {
	t.Parallel()

	d := newTestDirectory(t, &fakeLookup{})
	got, err := d.Resolve(context.Background(), "+1 555 0100")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("Resolve() = %#v, want empty non-nil", got)
	}
}

func TestResolveStoreError(t *testing.T) {
	t.Parallel()

	boom := errors.New("db down")
	d := newTestDirectory(t, &fakeLookup{err: boom})
	if _, err := d.Resolve(context.Background(), "099"); !errors.Is(err, boom) {
		t.Fatalf("Resolve() error = %v, want %v", err, boom)
	}
}

func TestCandidatesOrder(t *testing.T) {
	t.Parallel()

	d := newTestDirectory(t, &fakeLookup{})
	if got := d.Candidates("+598 99 1"); !reflect.DeepEqual(got, []string{"598991", "991"}) {
		t.Fatalf("Candidates() = %v", got)
	}
	if got := d.Candidates("991"); !reflect.DeepEqual(got, []string{"991", "598991"}) {
		t.Fatalf("Candidates() = %v", got)
	}
	if got := d.Candidates("---"); got != nil {
		t.Fatalf("Candidates() = %v, want nil", got)
	}
}

func TestCachedSkipsEmptyAndInvalidates(t *testing.T) {
	t.Parallel()

	lookup := &fakeLookup{byNumber: map[string][]string{}}
	c := NewCached(newTestDirectory(t, lookup))
	ctx := context.Background()

	if got, _ := c.Resolve(ctx, "59899123456"); len(got) != 0 {
		t.Fatalf("Resolve() = %v, want empty", got)
	}
	lookup.byNumber["59899123456"] = []string{"org-1"}
	if got, _ := c.Resolve(ctx, "59899123456"); len(got) != 1 {
		t.Fatalf("Resolve() after registration = %v, want [org-1]", got)
	}

	lookup.byNumber["59899123456"] = []string{"org-2"}
	calls := len(lookup.calls)
	if got, _ := c.Resolve(ctx, "59899123456"); got[0] != "org-1" {
		t.Fatalf("Resolve() = %v, want cached [org-1]", got)
	}
	if len(lookup.calls) != calls {
		t.Fatal("Resolve() hit the lookup for a cached contact")
	}

	c.Invalidate("59899123456")
	if got, _ := c.Resolve(ctx, "59899123456"); got[0] != "org-2" {
		t.Fatalf("Resolve() after Invalidate() = %v, want [org-2]", got)
	}

	lookup.byNumber["59899123456"] = []string{"org-3"}
	c.Reset()
	if got, _ := c.Resolve(ctx, "59899123456"); got[0] != "org-3" {
		t.Fatalf("Resolve() after Reset() = %v, want [org-3]", got)
	}
}
