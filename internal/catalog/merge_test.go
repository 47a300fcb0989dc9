package catalog

import "testing"

func TestMerge_CollisionRejected(t *testing.T) {
	c := Catalog{Services: []Service{sampleService("api")}}
	compose := []Service{sampleService("api")}
	if _, err := Merge(c, compose); err == nil {
		t.Fatal("expected collision error")
	}
}

func TestMerge_Combines(t *testing.T) {
	c := Catalog{Services: []Service{sampleService("api")}}
	compose := []Service{sampleService("academy_web")}
	merged, err := Merge(c, compose)
	if err != nil {
		t.Fatal(err)
	}
	if len(merged.Services) != 2 {
		t.Fatalf("expected 2 services, got %d", len(merged.Services))
	}
}
