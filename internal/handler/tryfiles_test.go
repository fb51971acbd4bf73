package handler

import "testing"

func TestStaticTryFilesDirectoryUsesIndex(t *testing.T) {
	got := StaticTryFiles("/var/www", nil, []string{"index.html"})
	want := []string{"/var/www/index.html"}
	if len(got) != 1 || got[0] != want[0] {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestStaticTryFilesLiteralFile(t *testing.T) {
	got := StaticTryFiles("/var/www", []string{"missing.txt"}, []string{"index.html"})
	want := []string{"/var/www/missing.txt"}
	if len(got) != 1 || got[0] != want[0] {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestBackendTryFilesJoinsRootWithEachEntry(t *testing.T) {
	got := BackendTryFiles("/srv/scripts", []string{"a.php", "b.php"})
	want := []string{"/srv/scripts/a.php", "/srv/scripts/b.php"}
	for i, w := range want {
		if got[i] != w {
			t.Errorf("got[%d] = %q, want %q", i, got[i], w)
		}
	}
}
