package process

import (
	"time"

	"github.com/indigo423/kuwaiba-sub029/internal/translation"
	"github.com/indigo423/kuwaiba-sub029/pkg/script"
	"github.com/indigo423/kuwaiba-sub029/pkg/storage"
)

type EngineOption = func(*Engine)

func WithStorage(persistence storage.Storage) EngineOption {
	return func(engine *Engine) {
		engine.persistence = persistence
	}
}

// WithProcessEnginePath sets the directory holding process/definitions and form/definitions.
func WithProcessEnginePath(path string) EngineOption {
	return func(engine *Engine) {
		engine.processEnginePath = path
	}
}

func WithTranslator(translator translation.Translator) EngineOption {
	return func(engine *Engine) {
		engine.translator = translator
	}
}

// WithScriptRuntime sets the runtime of the artifact pre and post condition scripts.
func WithScriptRuntime(jsRuntime script.JsRuntime) EngineOption {
	return func(engine *Engine) {
		engine.jsRuntime = jsRuntime
	}
}

// WithFeelRuntime sets the runtime evaluating kpi actions.
func WithFeelRuntime(feelRuntime script.FeelRuntime) EngineOption {
	return func(engine *Engine) {
		engine.feelRuntime = feelRuntime
	}
}

// WithDefinitionCache bounds the definition cache, a size of 0 means unbounded and a ttl of 0 means no expiry.
// Evicted definitions are read from the repository again on their next use.
func WithDefinitionCache(size int, ttl time.Duration) EngineOption {
	return func(engine *Engine) {
		engine.definitionCacheSize = size
		engine.definitionCacheTTL = ttl
	}
}

func WithName(name string) EngineOption {
	return func(engine *Engine) {
		engine.name = name
	}
}
