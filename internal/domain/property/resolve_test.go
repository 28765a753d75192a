package property

import (
	"errors"
	"testing"
)

func TestResolvePrecedenceInstanceOverGlobalOverDefault(t *testing.T) {
	models := []Model{
		{Kind: KindValue, Name: "a", DefaultValue: "1"},
		{Kind: KindValue, Name: "b", Required: true},
	}
	globals := []Valued{{Name: "a", Value: "2"}}
	instance := []Abstract{NewValue("b", "x")}

	resolved, err := Resolve(models, globals, instance)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(resolved) != 2 {
		t.Fatalf("resolved count = %d, want 2", len(resolved))
	}
	if resolved[0].Name != "a" || resolved[0].Value != "2" {
		t.Fatalf("a = %q, want %q", resolved[0].Value, "2")
	}
	if resolved[1].Name != "b" || resolved[1].Value != "x" {
		t.Fatalf("b = %q, want %q", resolved[1].Value, "x")
	}
}

func TestResolveRequiredUnresolvedFails(t *testing.T) {
	models := []Model{
		{Kind: KindValue, Name: "a", DefaultValue: "1"},
		{Kind: KindValue, Name: "b", Required: true},
	}

	_, err := Resolve(models, nil, nil)
	if err == nil {
		t.Fatal("expected error for unresolved required property")
	}
	var missing *MissingRequiredError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingRequiredError, got %v", err)
	}
	if len(missing.Names) != 1 || missing.Names[0] != "b" {
		t.Fatalf("missing = %v, want [b]", missing.Names)
	}
}

func TestResolveOptionalUnresolvedIsOmitted(t *testing.T) {
	models := []Model{{Kind: KindValue, Name: "a"}}

	resolved, err := Resolve(models, nil, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(resolved) != 0 {
		t.Fatalf("resolved count = %d, want 0", len(resolved))
	}
}

func TestResolveSubstitutesReferences(t *testing.T) {
	models := []Model{
		{Kind: KindValue, Name: "url", DefaultValue: "http://{{host}}:{{port}}/"},
		{Kind: KindValue, Name: "host", DefaultValue: "localhost"},
	}
	globals := []Valued{{Name: "port", Value: "8080"}}

	resolved, err := Resolve(models, globals, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	url, ok := FindAbstract(resolved, "url")
	if !ok {
		t.Fatal("url not resolved")
	}
	if url.Value != "http://localhost:8080/" {
		t.Fatalf("url = %q, want %q", url.Value, "http://localhost:8080/")
	}
}

func TestResolveReferencePrecedenceFollowsOverrides(t *testing.T) {
	models := []Model{
		{Kind: KindValue, Name: "greeting", DefaultValue: "hello {{name}}"},
		{Kind: KindValue, Name: "name", DefaultValue: "default"},
	}
	globals := []Valued{{Name: "name", Value: "global"}}
	instance := []Abstract{NewValue("name", "instance")}

	resolved, err := Resolve(models, globals, instance)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	greeting, _ := FindAbstract(resolved, "greeting")
	if greeting.Value != "hello instance" {
		t.Fatalf("greeting = %q, want %q", greeting.Value, "hello instance")
	}
}

func TestResolveReferenceCycleFails(t *testing.T) {
	models := []Model{
		{Kind: KindValue, Name: "a", DefaultValue: "{{b}}"},
		{Kind: KindValue, Name: "b", DefaultValue: "{{a}}"},
	}

	_, err := Resolve(models, nil, nil)
	if err == nil {
		t.Fatal("expected cycle error")
	}
	var cycle *ReferenceCycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("expected ReferenceCycleError, got %v", err)
	}
}

func TestResolveSelfReferenceFails(t *testing.T) {
	models := []Model{{Kind: KindValue, Name: "a", DefaultValue: "x{{a}}"}}

	_, err := Resolve(models, nil, nil)
	var cycle *ReferenceCycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("expected ReferenceCycleError, got %v", err)
	}
}

func TestResolveMalformedReferenceFails(t *testing.T) {
	models := []Model{{Kind: KindValue, Name: "a", DefaultValue: "{{unbalanced"}}

	_, err := Resolve(models, nil, nil)
	var malformed *MalformedReferenceError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedReferenceError, got %v", err)
	}
}

func TestResolveUnknownReferenceStaysForInstances(t *testing.T) {
	models := []Model{{Kind: KindValue, Name: "conf", DefaultValue: "/etc/{{instance_name}}.conf"}}

	resolved, err := Resolve(models, nil, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	conf, _ := FindAbstract(resolved, "conf")
	if conf.Value != "/etc/{{instance_name}}.conf" {
		t.Fatalf("conf = %q, want token preserved", conf.Value)
	}

	names := InstanceModel(resolved)
	if len(names) != 1 || names[0] != "instance_name" {
		t.Fatalf("instance model = %v, want [instance_name]", names)
	}
}

func TestResolveIterableUsesInstanceItemCount(t *testing.T) {
	models := []Model{{
		Kind: KindIterable,
		Name: "backends",
		Fields: []Model{
			{Kind: KindValue, Name: "host", Required: true},
			{Kind: KindValue, Name: "weight", DefaultValue: "1"},
		},
	}}
	instance := []Abstract{NewIterable("backends",
		Item{Title: "b1", Properties: []Abstract{NewValue("host", "10.0.0.1")}},
		Item{Title: "b2", Properties: []Abstract{NewValue("host", "10.0.0.2"), NewValue("weight", "3")}},
	)}

	resolved, err := Resolve(models, nil, instance)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	block, ok := FindAbstract(resolved, "backends")
	if !ok || block.Kind != KindIterable {
		t.Fatal("backends block not resolved")
	}
	if len(block.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(block.Items))
	}
	first, _ := FindAbstract(block.Items[0].Properties, "weight")
	if first.Value != "1" {
		t.Fatalf("item 0 weight = %q, want default %q", first.Value, "1")
	}
	second, _ := FindAbstract(block.Items[1].Properties, "weight")
	if second.Value != "3" {
		t.Fatalf("item 1 weight = %q, want override %q", second.Value, "3")
	}
}

func TestResolveIterableReferenceGlobalBeatsFieldDefault(t *testing.T) {
	models := []Model{{
		Kind: KindIterable,
		Name: "backends",
		Fields: []Model{
			{Kind: KindValue, Name: "endpoint", DefaultValue: "{{scheme}}://{{host}}"},
			{Kind: KindValue, Name: "scheme", DefaultValue: "http"},
		},
	}}
	globals := []Valued{{Name: "scheme", Value: "https"}}
	instance := []Abstract{NewIterable("backends",
		Item{Title: "b1", Properties: []Abstract{NewValue("host", "10.0.0.1")}},
	)}

	resolved, err := Resolve(models, globals, instance)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	block, _ := FindAbstract(resolved, "backends")
	endpoint, _ := FindAbstract(block.Items[0].Properties, "endpoint")
	if endpoint.Value != "https://10.0.0.1" {
		t.Fatalf("endpoint = %q, want %q", endpoint.Value, "https://10.0.0.1")
	}
}

func TestResolveIterableFallsBackToDefaultCount(t *testing.T) {
	models := []Model{{
		Kind:         KindIterable,
		Name:         "workers",
		DefaultCount: 2,
		Fields:       []Model{{Kind: KindValue, Name: "threads", DefaultValue: "4"}},
	}}

	resolved, err := Resolve(models, nil, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	block, _ := FindAbstract(resolved, "workers")
	if len(block.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(block.Items))
	}
	threads, _ := FindAbstract(block.Items[0].Properties, "threads")
	if threads.Value != "4" {
		t.Fatalf("threads = %q, want %q", threads.Value, "4")
	}
}

func TestResolveIterableRequiredMemberMissing(t *testing.T) {
	models := []Model{{
		Kind:   KindIterable,
		Name:   "backends",
		Fields: []Model{{Kind: KindValue, Name: "host", Required: true}},
	}}
	instance := []Abstract{NewIterable("backends", Item{Title: "b1"})}

	_, err := Resolve(models, nil, instance)
	var missing *MissingRequiredError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingRequiredError, got %v", err)
	}
	if len(missing.Names) != 1 || missing.Names[0] != "backends[0].host" {
		t.Fatalf("missing = %v, want [backends[0].host]", missing.Names)
	}
}

func TestResolveInstanceFillsRemainingTokens(t *testing.T) {
	resolved := []Abstract{NewValue("conf", "/etc/{{instance_name}}.conf")}

	filled, err := ResolveInstance(resolved, []Valued{{Name: "instance_name", Value: "web-1"}})
	if err != nil {
		t.Fatalf("resolve instance: %v", err)
	}
	conf, _ := FindAbstract(filled, "conf")
	if conf.Value != "/etc/web-1.conf" {
		t.Fatalf("conf = %q, want %q", conf.Value, "/etc/web-1.conf")
	}
}

func TestMergeValuedPreservesUnnamedProperties(t *testing.T) {
	existing := []Valued{{Name: "a", Value: "1"}, {Name: "b", Value: "2"}}
	updates := []Valued{{Name: "b", Value: "20"}, {Name: "c", Value: "3"}}

	merged := MergeValued(existing, updates)
	if len(merged) != 3 {
		t.Fatalf("merged count = %d, want 3", len(merged))
	}
	if merged[0].Value != "1" || merged[1].Value != "20" || merged[2].Value != "3" {
		t.Fatalf("merged = %v", merged)
	}
}

func TestFlattenValuesDescendsIterables(t *testing.T) {
	properties := []Abstract{
		NewValue("a", "1"),
		NewIterable("block", Item{Properties: []Abstract{NewValue("b", "2")}}),
	}

	values := FlattenValues(properties)
	if len(values) != 2 {
		t.Fatalf("values count = %d, want 2", len(values))
	}
	if values[1].Name != "b" || values[1].Value != "2" {
		t.Fatalf("values[1] = %v", values[1])
	}
}
