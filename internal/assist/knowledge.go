// Package assist holds the chat assistant's fixed knowledge base: short
// canned explanations of the dashboard's charts, keyed by the keywords a
// user is likely to type. The built-in defaults can be overridden from a
// YAML file and hot-reloaded while the service runs.
package assist

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// defaultEntries mirror the dashboard's three analytics views.
var defaultEntries = map[string]string{
	"map":       "The planetary scan (map) visualizes global seismic events. Dot size and color intensity indicate magnitude; clusters trace tectonic fault lines.",
	"scan":      "The planetary scan (map) visualizes global seismic events. Dot size and color intensity indicate magnitude; clusters trace tectonic fault lines.",
	"frequency": "The frequency spectrum is a histogram: small earthquakes happen often, massive ones are rare, following the Gutenberg-Richter law.",
	"time":      "The activity timeline shows the sequence of events over time. Spikes indicate clusters of activity and possible aftershock sequences.",
}

// Knowledge is a substring-matching keyword map. It implements
// domain.KeywordSource and is safe for concurrent use; LoadFile swaps the
// entry set atomically.
type Knowledge struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewKnowledge returns the built-in knowledge base.
func NewKnowledge() *Knowledge {
	return &Knowledge{entries: defaultEntries}
}

// Match returns the explanation for the first keyword contained in query.
func (k *Knowledge) Match(query string) (string, bool) {
	query = strings.ToLower(query)

	k.mu.RLock()
	defer k.mu.RUnlock()
	for keyword, answer := range k.entries {
		if strings.Contains(query, keyword) {
			return answer, true
		}
	}
	return "", false
}

// Len returns the number of configured keywords.
func (k *Knowledge) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.entries)
}

// knowledgeFile is the YAML override format: a flat keyword -> answer map.
type knowledgeFile struct {
	Keywords map[string]string `yaml:"keywords"`
}

// LoadFile replaces the entry set with the keywords from a YAML file.
// An empty or keyword-less file is rejected so a bad reload cannot wipe
// the knowledge base.
func (k *Knowledge) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read knowledge config: %w", err)
	}

	var file knowledgeFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse knowledge config: %w", err)
	}
	if len(file.Keywords) == 0 {
		return fmt.Errorf("knowledge config %s has no keywords", path)
	}

	entries := make(map[string]string, len(file.Keywords))
	for keyword, answer := range file.Keywords {
		entries[strings.ToLower(keyword)] = answer
	}

	k.mu.Lock()
	k.entries = entries
	k.mu.Unlock()
	return nil
}

// Watch starts a background goroutine that reloads the YAML file whenever it
// changes. A failed reload keeps the previous entries. Call the returned
// stop function to clean up.
func (k *Knowledge) Watch(path string, logger *slog.Logger) (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("knowledge watcher: %w", err)
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return nil, fmt.Errorf("knowledge watcher add %s: %w", path, err)
	}

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					if err := k.LoadFile(path); err != nil {
						logger.Warn("knowledge reload failed, keeping previous entries", "error", err)
						continue
					}
					logger.Info("knowledge base reloaded", "path", path, "keywords", k.Len())
				}
			case <-w.Errors:
				// Ignore watcher errors; the current entries stay valid.
			case <-done:
				return
			}
		}
	}()

	return func() { close(done) }, nil
}
