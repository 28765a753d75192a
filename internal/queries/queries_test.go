package queries

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/plateau-io/plateau/internal/catalog"
	"github.com/plateau-io/plateau/internal/domain/command"
	"github.com/plateau-io/plateau/internal/domain/engine"
	"github.com/plateau-io/plateau/internal/domain/platform"
	"github.com/plateau-io/plateau/internal/domain/property"
	"github.com/plateau-io/plateau/internal/storage"
	"github.com/plateau-io/plateau/internal/storage/sqlite"
)

type fixture struct {
	service Service
	handler *engine.Handler
	now     *time.Time
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	commands, err := platform.NewCommandRegistry()
	if err != nil {
		t.Fatalf("command registry: %v", err)
	}
	events, err := platform.NewEventRegistry()
	if err != nil {
		t.Fatalf("event registry: %v", err)
	}
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "journal.db"), events)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	modules := catalog.NewMemory()
	handler := &engine.Handler{
		Commands: commands,
		Events:   events,
		Store:    store,
		Decider:  platform.Decider{Catalog: modules},
		Now:      func() time.Time { return now },
	}
	return fixture{
		service: Service{Store: store, Catalog: modules},
		handler: handler,
		now:     &now,
	}
}

func (f fixture) execute(t *testing.T, cmd command.Command, err error) engine.Result {
	t.Helper()
	if err != nil {
		t.Fatalf("build command: %v", err)
	}
	result, err := f.handler.Execute(context.Background(), cmd)
	if err != nil {
		t.Fatalf("execute %s: %v", cmd.Type, err)
	}
	if !result.Accepted() {
		t.Fatalf("%s rejected: %+v", cmd.Type, result.Decision.Rejections)
	}
	return result
}

func (f fixture) createPlatform(t *testing.T, app, name string, production bool, modules ...platform.DeployedModule) string {
	t.Helper()
	cmd, err := platform.NewCreateCommand("", platform.Definition{
		Key:        platform.Key{ApplicationName: app, PlatformName: name},
		Production: production,
		Modules:    modules,
	}, "alice")
	result := f.execute(t, cmd, err)
	return result.Decision.Events[0].PlatformID
}

func webModule() platform.DeployedModule {
	return platform.DeployedModule{
		Name:       "web",
		Version:    "1.0",
		ModulePath: "#GROUP",
		Properties: []property.Abstract{
			property.NewValue("url", "http://{{host}}:{{port}}/"),
		},
		Instances: []platform.Instance{{
			Name:       "web-1",
			Properties: []property.Valued{{Name: "port", Value: "8080"}},
		}},
	}
}

func TestGetPlatformIDAndByKey(t *testing.T) {
	f := newFixture(t)
	platformID := f.createPlatform(t, "demo", "prod", true)

	key := platform.Key{ApplicationName: "demo", PlatformName: "prod"}
	id, err := f.service.GetPlatformID(context.Background(), key)
	if err != nil {
		t.Fatalf("get platform id: %v", err)
	}
	if id != platformID {
		t.Fatalf("id = %s, want %s", id, platformID)
	}

	state, err := f.service.GetPlatformByKey(context.Background(), key)
	if err != nil {
		t.Fatalf("get platform by key: %v", err)
	}
	if state.ID != platformID {
		t.Fatalf("state id = %s, want %s", state.ID, platformID)
	}
	if !state.Production {
		t.Fatal("expected production platform")
	}
}

func TestGetPlatformNotFoundWhenDeleted(t *testing.T) {
	f := newFixture(t)
	platformID := f.createPlatform(t, "demo", "prod", false)

	cmd, err := platform.NewDeleteCommand(platformID, "alice")
	f.execute(t, cmd, err)

	if _, err := f.service.GetPlatform(context.Background(), platformID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("error = %v, want %v", err, storage.ErrNotFound)
	}
	exists, err := f.service.PlatformExists(context.Background(), platform.Key{ApplicationName: "demo", PlatformName: "prod"})
	if err != nil {
		t.Fatalf("platform exists: %v", err)
	}
	if exists {
		t.Fatal("expected exists = false after delete")
	}
}

func TestGetPlatformAtTime(t *testing.T) {
	f := newFixture(t)
	created := *f.now
	platformID := f.createPlatform(t, "demo", "prod", false)

	*f.now = created.Add(time.Hour)
	cmd, err := platform.NewUpdatePropertiesCommand(platformID, 1, []property.Valued{{Name: "env", Value: "prod"}}, "alice")
	f.execute(t, cmd, err)

	past, err := f.service.GetPlatformAtTime(context.Background(), platformID, created)
	if err != nil {
		t.Fatalf("get platform at time: %v", err)
	}
	if past.VersionID != 1 {
		t.Fatalf("version id = %d, want 1 at creation time", past.VersionID)
	}
	if len(past.GlobalProperties) != 0 {
		t.Fatalf("globals = %+v, want none at creation time", past.GlobalProperties)
	}

	current, err := f.service.GetPlatform(context.Background(), platformID)
	if err != nil {
		t.Fatalf("get platform: %v", err)
	}
	if current.VersionID != 2 {
		t.Fatalf("version id = %d, want 2 now", current.VersionID)
	}

	if _, err := f.service.GetPlatformAtTime(context.Background(), platformID, created.Add(-time.Hour)); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("error = %v, want %v before creation", err, storage.ErrNotFound)
	}
}

func TestListApplicationsGroupsLivePlatforms(t *testing.T) {
	f := newFixture(t)
	f.createPlatform(t, "demo", "prod", true)
	f.createPlatform(t, "demo", "dev", false)
	f.createPlatform(t, "other", "prod", false)

	apps, err := f.service.ListApplications(context.Background())
	if err != nil {
		t.Fatalf("list applications: %v", err)
	}
	if len(apps) != 2 {
		t.Fatalf("applications = %d, want 2", len(apps))
	}
	if apps[0].Name != "demo" || len(apps[0].Platforms) != 2 {
		t.Fatalf("apps[0] = %s with %d platforms, want demo with 2", apps[0].Name, len(apps[0].Platforms))
	}
	if apps[1].Name != "other" {
		t.Fatalf("apps[1] = %s, want other", apps[1].Name)
	}
}

func TestSearchPlatformsByFilter(t *testing.T) {
	f := newFixture(t)
	f.createPlatform(t, "demo", "prod", true)
	f.createPlatform(t, "demo", "dev", false)

	entries, err := f.service.SearchPlatforms(context.Background(), `production = true`)
	if err != nil {
		t.Fatalf("search platforms: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].Key.PlatformName != "prod" {
		t.Fatalf("platform = %s, want prod", entries[0].Key.PlatformName)
	}
}

func TestSearchApplicationsByFilter(t *testing.T) {
	f := newFixture(t)
	f.createPlatform(t, "demo", "prod", false)
	f.createPlatform(t, "other", "prod", false)

	apps, err := f.service.SearchApplications(context.Background(), `application_name = "demo"`)
	if err != nil {
		t.Fatalf("search applications: %v", err)
	}
	if len(apps) != 1 || apps[0].Name != "demo" {
		t.Fatalf("apps = %+v, want only demo", apps)
	}
}

func TestPlatformsUsingModule(t *testing.T) {
	f := newFixture(t)
	f.createPlatform(t, "demo", "prod", false, webModule())
	f.createPlatform(t, "demo", "dev", false)

	states, err := f.service.PlatformsUsingModule(context.Background(), catalog.ModuleKey{Name: "web", Version: "1.0"})
	if err != nil {
		t.Fatalf("platforms using module: %v", err)
	}
	if len(states) != 1 {
		t.Fatalf("platforms = %d, want 1", len(states))
	}
	if states[0].Key.PlatformName != "prod" {
		t.Fatalf("platform = %s, want prod", states[0].Key.PlatformName)
	}
}

func TestListPlatformEventsPagination(t *testing.T) {
	f := newFixture(t)
	platformID := f.createPlatform(t, "demo", "prod", false)
	for version := int64(1); version <= 4; version++ {
		cmd, err := platform.NewUpdatePropertiesCommand(platformID, version,
			[]property.Valued{{Name: "env", Value: fmt.Sprintf("v%d", version)}}, "alice")
		f.execute(t, cmd, err)
	}

	page, err := f.service.ListPlatformEvents(context.Background(), platformID, 2, "", false)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(page.Events) != 2 || page.Events[0].Seq != 1 || page.Events[1].Seq != 2 {
		t.Fatalf("first page seqs = %+v, want 1, 2", page.Events)
	}
	if page.NextPageToken == "" {
		t.Fatal("expected a next page token")
	}

	second, err := f.service.ListPlatformEvents(context.Background(), platformID, 2, page.NextPageToken, false)
	if err != nil {
		t.Fatalf("list second page: %v", err)
	}
	if len(second.Events) != 2 || second.Events[0].Seq != 3 {
		t.Fatalf("second page seqs = %+v, want 3, 4", second.Events)
	}

	last, err := f.service.ListPlatformEvents(context.Background(), platformID, 2, second.NextPageToken, false)
	if err != nil {
		t.Fatalf("list last page: %v", err)
	}
	if len(last.Events) != 1 || last.Events[0].Seq != 5 {
		t.Fatalf("last page seqs = %+v, want 5", last.Events)
	}
	if last.NextPageToken != "" {
		t.Fatalf("token = %q, want none on the final page", last.NextPageToken)
	}

	newest, err := f.service.ListPlatformEvents(context.Background(), platformID, 2, "", true)
	if err != nil {
		t.Fatalf("list descending: %v", err)
	}
	if len(newest.Events) != 2 || newest.Events[0].Seq != 5 || newest.Events[1].Seq != 4 {
		t.Fatalf("descending page seqs = %+v, want 5, 4", newest.Events)
	}

	other := f.createPlatform(t, "demo", "dev", false)
	if _, err := f.service.ListPlatformEvents(context.Background(), other, 2, page.NextPageToken, false); err == nil {
		t.Fatal("expected token scoped to another platform to be rejected")
	}
}

func TestGlobalAndModuleProperties(t *testing.T) {
	f := newFixture(t)
	platformID := f.createPlatform(t, "demo", "prod", false, webModule())

	cmd, err := platform.NewUpdatePropertiesCommand(platformID, 1, []property.Valued{{Name: "host", Value: "demo.example"}}, "alice")
	f.execute(t, cmd, err)

	globals, err := f.service.GetGlobalProperties(context.Background(), platformID)
	if err != nil {
		t.Fatalf("get globals: %v", err)
	}
	if len(globals) != 1 || globals[0].Name != "host" {
		t.Fatalf("globals = %+v, want host", globals)
	}

	viaPath, err := f.service.GetModuleProperties(context.Background(), platformID, platform.GlobalPropertiesPath)
	if err != nil {
		t.Fatalf("get global scope by path: %v", err)
	}
	if len(viaPath) != 1 || viaPath[0].Value != "demo.example" {
		t.Fatalf("global scope = %+v, want host=demo.example", viaPath)
	}

	props, err := f.service.GetModuleProperties(context.Background(), platformID, "#GROUP#web#1.0")
	if err != nil {
		t.Fatalf("get module properties: %v", err)
	}
	if len(props) != 1 || props[0].Name != "url" {
		t.Fatalf("properties = %+v, want stored url", props)
	}

	if _, err := f.service.GetModuleProperties(context.Background(), platformID, "#NOPE"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("error = %v, want %v for unknown path", err, storage.ErrNotFound)
	}
}

func TestGetInstancesModel(t *testing.T) {
	f := newFixture(t)
	platformID := f.createPlatform(t, "demo", "prod", false, webModule())

	cmd, err := platform.NewUpdatePropertiesCommand(platformID, 1, []property.Valued{{Name: "host", Value: "demo.example"}}, "alice")
	f.execute(t, cmd, err)

	names, err := f.service.GetInstancesModel(context.Background(), platformID, "#GROUP#web#1.0")
	if err != nil {
		t.Fatalf("get instances model: %v", err)
	}
	if len(names) != 1 || names[0] != "port" {
		t.Fatalf("instance model = %v, want [port]", names)
	}
}

func TestGetInstancesModelModuleValueBeatsGlobal(t *testing.T) {
	f := newFixture(t)
	module := platform.DeployedModule{
		Name:       "web",
		Version:    "1.0",
		ModulePath: "#GROUP",
		Properties: []property.Abstract{
			property.NewValue("url", "http://{{host}}/"),
			property.NewValue("host", "demo.example"),
		},
	}
	platformID := f.createPlatform(t, "demo", "prod", false, module)

	cmd, err := platform.NewUpdatePropertiesCommand(platformID, 1, []property.Valued{{Name: "host", Value: "{{fallback_host}}"}}, "alice")
	f.execute(t, cmd, err)

	names, err := f.service.GetInstancesModel(context.Background(), platformID, "#GROUP#web#1.0")
	if err != nil {
		t.Fatalf("get instances model: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("instance model = %v, want none: module host must shadow the global", names)
	}
}

func TestDeployedModuleAndInstanceExists(t *testing.T) {
	f := newFixture(t)
	f.createPlatform(t, "demo", "prod", false, webModule())
	key := platform.Key{ApplicationName: "demo", PlatformName: "prod"}

	exists, err := f.service.DeployedModuleExists(context.Background(), key, "#GROUP#web#1.0")
	if err != nil {
		t.Fatalf("deployed module exists: %v", err)
	}
	if !exists {
		t.Fatal("expected deployed module to exist")
	}

	exists, err = f.service.DeployedModuleExists(context.Background(), key, "#GROUP#api#2.0")
	if err != nil {
		t.Fatalf("deployed module exists: %v", err)
	}
	if exists {
		t.Fatal("expected missing module path")
	}

	exists, err = f.service.InstanceExists(context.Background(), key, "#GROUP#web#1.0", "web-1")
	if err != nil {
		t.Fatalf("instance exists: %v", err)
	}
	if !exists {
		t.Fatal("expected instance web-1")
	}

	exists, err = f.service.InstanceExists(context.Background(), key, "#GROUP#web#1.0", "web-9")
	if err != nil {
		t.Fatalf("instance exists: %v", err)
	}
	if exists {
		t.Fatal("expected missing instance")
	}

	exists, err = f.service.InstanceExists(context.Background(), platform.Key{ApplicationName: "ghost", PlatformName: "prod"}, "#GROUP#web#1.0", "web-1")
	if err != nil {
		t.Fatalf("instance exists for missing platform: %v", err)
	}
	if exists {
		t.Fatal("expected false for missing platform")
	}
}
