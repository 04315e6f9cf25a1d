package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/panoptikon-net/panoptikon/pkg/plugin"
	"go.uber.org/zap"
)

type fakeModule struct {
	info    plugin.PluginInfo
	initErr error
	started []string // shared log of lifecycle calls
	log     *[]string
}

func (f *fakeModule) Info() plugin.PluginInfo { return f.info }
func (f *fakeModule) Init(context.Context, plugin.Dependencies) error {
	*f.log = append(*f.log, "init:"+f.info.Name)
	return f.initErr
}
func (f *fakeModule) Start(context.Context) error {
	*f.log = append(*f.log, "start:"+f.info.Name)
	return nil
}
func (f *fakeModule) Stop(context.Context) error {
	*f.log = append(*f.log, "stop:"+f.info.Name)
	return nil
}

func TestValidate_TopologicalOrder(t *testing.T) {
	r := New(zap.NewNop())
	var log []string

	a := &fakeModule{info: plugin.PluginInfo{Name: "a"}, log: &log}
	b := &fakeModule{info: plugin.PluginInfo{Name: "b", Dependencies: []string{"a"}}, log: &log}

	if err := r.Register(b); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(a); err != nil {
		t.Fatal(err)
	}
	if err := r.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	deps := func(string) plugin.Dependencies { return plugin.Dependencies{} }
	if err := r.InitAll(context.Background(), deps); err != nil {
		t.Fatalf("init: %v", err)
	}

	if len(log) != 2 || log[0] != "init:a" || log[1] != "init:b" {
		t.Errorf("init order = %v, want [init:a init:b]", log)
	}
}

func TestValidate_MissingRequiredDependency(t *testing.T) {
	r := New(zap.NewNop())
	var log []string

	b := &fakeModule{
		info: plugin.PluginInfo{Name: "b", Dependencies: []string{"missing"}, Required: true},
		log:  &log,
	}
	if err := r.Register(b); err != nil {
		t.Fatal(err)
	}
	if err := r.Validate(); err == nil {
		t.Fatal("validate succeeded, want error for missing required dependency")
	}
}

func TestInitAll_OptionalFailureDisables(t *testing.T) {
	r := New(zap.NewNop())
	var log []string

	a := &fakeModule{info: plugin.PluginInfo{Name: "a"}, initErr: errors.New("nope"), log: &log}
	if err := r.Register(a); err != nil {
		t.Fatal(err)
	}
	if err := r.Validate(); err != nil {
		t.Fatal(err)
	}

	deps := func(string) plugin.Dependencies { return plugin.Dependencies{} }
	if err := r.InitAll(context.Background(), deps); err != nil {
		t.Fatalf("InitAll returned %v for optional module failure, want nil", err)
	}
	if err := r.StartAll(context.Background()); err != nil {
		t.Fatal(err)
	}

	for _, entry := range log {
		if entry == "start:a" {
			t.Error("disabled module was started")
		}
	}
}
