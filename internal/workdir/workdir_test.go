package workdir

import "testing"

func TestResolveZoningTemplate(t *testing.T) {
	r, err := Resolve("zoning", "alachua_gainesville")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := "/srv/datascrub/08_Land_Use_and_Zoning/zoning/florida/county/alachua/current/source_data/gainesville"
	if r.WorkDir != want {
		t.Errorf("WorkDir = %q, want %q", r.WorkDir, want)
	}
}

func TestResolveDuvalUnifiedOverride(t *testing.T) {
	r, err := Resolve("zoning", "duval_unified")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if r.City != "jacksonville" {
		t.Errorf("City = %q, want jacksonville", r.City)
	}
	want := "/srv/datascrub/08_Land_Use_and_Zoning/zoning/florida/county/duval/current/source_data/jacksonville"
	if r.WorkDir != want {
		t.Errorf("WorkDir = %q, want %q", r.WorkDir, want)
	}
}

func TestResolveUnknownLayerGeneric(t *testing.T) {
	r, err := Resolve("mystery_layer", "alachua_gainesville")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := "/srv/datascrub/generic/alachua/gainesville"
	if r.WorkDir != want {
		t.Errorf("WorkDir = %q, want %q", r.WorkDir, want)
	}
}

func TestResolveUnknownEntityErrors(t *testing.T) {
	if _, err := Resolve("zoning", "atlantis_nowhere"); err == nil {
		t.Fatal("Resolve(atlantis_nowhere) expected error")
	}
}

func TestLayerRootKnownLayer(t *testing.T) {
	got := LayerRoot("zoning")
	want := "/srv/datascrub/08_Land_Use_and_Zoning/zoning/florida"
	if got != want {
		t.Errorf("LayerRoot(zoning) = %q, want %q", got, want)
	}
}

func TestLayerRootUnknownLayer(t *testing.T) {
	got := LayerRoot("mystery_layer")
	want := "/srv/datascrub/generic"
	if got != want {
		t.Errorf("LayerRoot(mystery_layer) = %q, want %q", got, want)
	}
}
