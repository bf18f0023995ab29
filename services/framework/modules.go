package framework

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/magictoy/arachni/pkg/set"
	"github.com/magictoy/arachni/scan"
)

// LoadModules replaces the loaded module set. Unknown names fail the
// whole call without loading anything, all offenders reported at once.
func (f *Framework) LoadModules(names []string) error {
	if unknown := set.StrDifference(names, f.availableModules); len(unknown) > 0 {
		return errors.Wrap(scan.ErrUnknownModule, strings.Join(unknown, ", "))
	}

	f.mu.Lock()
	f.modules = append([]string(nil), names...)
	f.mu.Unlock()
	return nil
}

// LoadPlugins replaces the loaded plugin set with plugin name to
// option-set mappings.
func (f *Framework) LoadPlugins(plugins map[string]map[string]interface{}) error {
	names := make([]string, 0, len(plugins))
	for name := range plugins {
		names = append(names, name)
	}
	if unknown := set.StrDifference(names, f.availablePlugins); len(unknown) > 0 {
		return errors.Wrap(scan.ErrUnknownPlugin, strings.Join(unknown, ", "))
	}

	f.mu.Lock()
	f.plugins = make(map[string]map[string]interface{}, len(plugins))
	for name, popts := range plugins {
		f.plugins[name] = popts
	}
	f.mu.Unlock()
	return nil
}

func (f *Framework) AvailableModules() []string {
	return append([]string(nil), f.availableModules...)
}

func (f *Framework) AvailablePlugins() []string {
	return append([]string(nil), f.availablePlugins...)
}

func (f *Framework) LoadedModules() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string(nil), f.modules...)
}

func (f *Framework) LoadedPlugins() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, 0, len(f.plugins))
	for name := range f.plugins {
		names = append(names, name)
	}
	return names
}

// UpdatePageQueue seeds supplementary pages into the crawl queue.
func (f *Framework) UpdatePageQueue(pages []string) error {
	f.mu.Lock()
	f.pageQueue = set.StrDedup(append(f.pageQueue, pages...))
	f.mu.Unlock()
	return nil
}

// PageQueue returns the crawl queue snapshot, which doubles as the
// sitemap exposed over the spider handler.
func (f *Framework) PageQueue() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string(nil), f.pageQueue...)
}

// RestrictToElements limits the audit to the supplied element ids.
func (f *Framework) RestrictToElements(ids []string) error {
	f.mu.Lock()
	f.elements = append([]string(nil), ids...)
	f.mu.Unlock()
	return nil
}
