package main

import (
	"reflect"
	"testing"
)

func TestNormalizeArgs(t *testing.T) {
	got := normalizeArgs([]string{"debug", "-mnemonic"})
	want := []string{"debug", "--mnemonic"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("normalizeArgs = %v, want %v", got, want)
	}
}

func TestRootCommandLayout(t *testing.T) {
	root := rootCommand(&app{})
	for _, path := range [][]string{{"providers"}, {"list"}, {"add"}, {"remove", "x"}, {"verify", "x"}, {"approve", "x"}, {"debug"}} {
		cmd, _, err := root.Find(path)
		if err != nil || cmd == root {
			t.Fatalf("command %v not found: %v", path, err)
		}
	}
	debug, _, _ := root.Find([]string{"debug"})
	if debug.Flags().Lookup("mnemonic") == nil {
		t.Fatal("debug is missing --mnemonic")
	}
}
