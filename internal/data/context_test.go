package data

import "testing"

func TestMapDataContext_Get(t *testing.T) {
	tests := []struct {
		name      string
		dc        *MapDataContext
		key       DependencyKey
		wantOK    bool
		wantValue any
	}{
		{name: "nil receiver returns not found", dc: nil, key: DepRepoMetadata},
		{name: "nil map treated as empty", dc: NewMapDataContext(nil), key: DepRepoMetadata},
		{name: "missing key returns not found", dc: NewMapDataContext(map[DependencyKey]any{}), key: DepRepoMetadata},
		{
			name:      "present key returns value",
			dc:        NewMapDataContext(map[DependencyKey]any{DepRepoReadme: "value"}),
			key:       DepRepoReadme,
			wantOK:    true,
			wantValue: "value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.dc.Get(tt.key)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if got != tt.wantValue {
				t.Fatalf("expected value %v, got %v", tt.wantValue, got)
			}
		})
	}
}

func TestLookup_TypeMismatchIsError(t *testing.T) {
	dc := NewMapDataContext(map[DependencyKey]any{DepRepoReadme: 42})

	_, ok, err := Lookup[string](dc, DepRepoReadme)
	if err == nil {
		t.Fatalf("expected type mismatch error")
	}
	if ok {
		t.Fatalf("expected ok=false on mismatch")
	}

	v, ok, err := Lookup[int](dc, DepRepoReadme)
	if err != nil || !ok || v != 42 {
		t.Fatalf("expected 42, got %v ok=%v err=%v", v, ok, err)
	}

	_, ok, err = Lookup[int](dc, DepRepoTree)
	if err != nil || ok {
		t.Fatalf("expected absent without error, got ok=%v err=%v", ok, err)
	}
}
