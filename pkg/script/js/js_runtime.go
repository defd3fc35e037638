package js

import (
	"context"
	"fmt"

	"github.com/dop251/goja"
	"github.com/indigo423/kuwaiba-sub029/pkg/script"
)

type JsRunnerFactory struct {
}

func (JsRunnerFactory) NewRunner() script.Runner {
	return newJsRunner()
}

type JsRuntime struct {
	pool *script.RunnerPool
}

var _ script.JsRuntime = &JsRuntime{}

func NewJsRuntime(ctx context.Context, maxVmPoolSize int, minVmPoolSize int) *JsRuntime {
	return &JsRuntime{
		pool: script.NewRunnerPool(ctx, JsRunnerFactory{}, maxVmPoolSize, minVmPoolSize),
	}
}

func (r *JsRuntime) RunScript(ctx context.Context, script string, variables map[string]any) (any, error) {
	var runner = r.pool.GetRunnerFromPool()
	defer r.pool.ReturnRunnerToPool(runner)

	return runner.(*JsRunner).runScript(ctx, script, variables)
}

type JsRunner struct {
	vm *goja.Runtime
}

func (r *JsRunner) Runner() {}

func newJsRunner() *JsRunner {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	return &JsRunner{vm: vm}
}

func (r *JsRunner) runScript(ctx context.Context, script string, variables map[string]any) (any, error) {
	for name, value := range variables {
		if err := r.vm.Set(name, value); err != nil {
			return nil, fmt.Errorf("failed to set script variable %s: %w", name, err)
		}
	}
	// globals must not leak into the next run on this vm
	defer func() {
		for name := range variables {
			_ = r.vm.GlobalObject().Delete(name)
		}
	}()

	defer r.vm.ClearInterrupt()
	stop := context.AfterFunc(ctx, func() {
		r.vm.Interrupt(ctx.Err())
	})
	defer stop()

	resp, err := r.vm.RunString(script)
	if err != nil {
		return nil, fmt.Errorf("error running script \"%s\" : %w", script, err)
	}
	return resp.Export(), nil
}
