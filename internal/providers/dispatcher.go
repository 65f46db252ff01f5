package providers

import (
	"fmt"
	"sort"
	"strings"

	"github.com/haasonsaas/nexus-assistant/pkg/models"
)

// Dispatcher resolves a model reference of the form "[provider/]name[:tag]"
// to a configured ProviderRecord, a bare model id, and the Adapter to
// invoke, per §4.3.
type Dispatcher struct {
	providers        map[string]models.ProviderRecord
	adapters         map[string]Adapter
	defaultProvider  string
	insertionOrder   []string
}

// NewDispatcher builds a dispatcher from configured provider records, in
// the given insertion order; the first entry is the default provider used
// when a model reference carries no prefix and no alias matches.
func NewDispatcher(order []string, records map[string]models.ProviderRecord, adapters map[string]Adapter) *Dispatcher {
	d := &Dispatcher{
		providers:      records,
		adapters:       adapters,
		insertionOrder: append([]string(nil), order...),
	}
	if len(order) > 0 {
		d.defaultProvider = order[0]
	}
	return d
}

// Resolved is everything the loop needs to make one adapter call.
type Resolved struct {
	ProviderName string
	Provider     models.ProviderRecord
	ModelID      string
	Adapter      Adapter
	Options      map[string]any
}

// Resolve splits an optional provider prefix (case-insensitive, guarding
// against false positives such as registry paths containing "." or ":"),
// resolves an alias, and returns the provider record plus adapter to
// invoke. Alias resolution never rewrites a prefix that was explicitly
// given.
func (d *Dispatcher) Resolve(modelRef string) (Resolved, error) {
	providerName, modelID := splitProviderPrefix(modelRef, d.providers)

	if providerName != "" {
		rec, ok := d.providers[providerName]
		if !ok {
			return Resolved{}, fmt.Errorf("unknown provider %q in model reference %q", providerName, modelRef)
		}
		resolvedID := rec.ResolveAlias(modelID)
		return d.build(providerName, rec, resolvedID)
	}

	// No prefix: scan aliases across all providers, in insertion order, with
	// the default provider winning ties (i.e. checked first).
	order := d.scanOrder()
	for _, name := range order {
		rec := d.providers[name]
		if resolved, ok := rec.Models.Aliases[modelID]; ok {
			return d.build(name, rec, resolved)
		}
		for _, m := range rec.Models.List {
			if m == modelID {
				return d.build(name, rec, modelID)
			}
		}
	}

	// Nothing matched explicitly: fall back to the default provider using
	// the model id verbatim.
	if d.defaultProvider != "" {
		rec := d.providers[d.defaultProvider]
		return d.build(d.defaultProvider, rec, modelID)
	}

	return Resolved{}, fmt.Errorf("no provider configured to resolve model reference %q", modelRef)
}

func (d *Dispatcher) scanOrder() []string {
	order := make([]string, 0, len(d.insertionOrder))
	if d.defaultProvider != "" {
		order = append(order, d.defaultProvider)
	}
	for _, name := range d.insertionOrder {
		if name != d.defaultProvider {
			order = append(order, name)
		}
	}
	if len(order) == 0 {
		// no explicit order given: derive one deterministically
		for name := range d.providers {
			order = append(order, name)
		}
		sort.Strings(order)
	}
	return order
}

func (d *Dispatcher) build(providerName string, rec models.ProviderRecord, modelID string) (Resolved, error) {
	adapter, ok := d.adapters[providerName]
	if !ok {
		return Resolved{}, fmt.Errorf("no adapter registered for provider %q", providerName)
	}
	return Resolved{
		ProviderName: providerName,
		Provider:     rec,
		ModelID:      modelID,
		Adapter:      adapter,
		Options:      rec.ResolveModelOptions(modelID),
	}, nil
}

// splitProviderPrefix splits "provider/model:tag" into ("provider",
// "model:tag"), guarding against false positives: a "/" that appears after
// a ":" (registry@tag style paths) or where the left-hand side isn't a
// known provider name is not treated as a provider prefix.
func splitProviderPrefix(ref string, providers map[string]models.ProviderRecord) (string, string) {
	idx := strings.Index(ref, "/")
	if idx <= 0 {
		return "", ref
	}
	candidate := strings.ToLower(ref[:idx])
	rest := ref[idx+1:]

	if strings.Contains(candidate, ":") {
		return "", ref
	}
	if _, ok := providers[candidate]; !ok {
		return "", ref
	}
	return candidate, rest
}

// DefaultModelRef returns the provider-prefixed reference a freshly created
// session should start on: the default provider's configured default
// model (§4.8). Returns "" if no provider is configured.
func (d *Dispatcher) DefaultModelRef() string {
	name := d.defaultProvider
	if name == "" {
		order := d.scanOrder()
		if len(order) == 0 {
			return ""
		}
		name = order[0]
	}
	rec, ok := d.providers[name]
	if !ok {
		return ""
	}
	return name + "/" + rec.Models.Default
}

// ProviderNames returns the configured provider names, default first, in
// the same order Resolve scans them.
func (d *Dispatcher) ProviderNames() []string {
	return d.scanOrder()
}

// ModelsFor returns the configured model catalog for provider, if any.
func (d *Dispatcher) ModelsFor(provider string) (models.ModelCatalog, bool) {
	rec, ok := d.providers[provider]
	if !ok {
		return models.ModelCatalog{}, false
	}
	return rec.Models, true
}

// Fallbacks returns the per-provider fallback list followed by the global
// fallback list, each to be attempted once per §4.5.
func Fallbacks(rec models.ProviderRecord, global []string) []string {
	out := append([]string(nil), rec.Models.Fallbacks...)
	out = append(out, global...)
	return out
}
