package suggest

import (
	"bufio"
	"cmp"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

type dictEntry struct {
	key  string // индексы наборов, по байту на букву
	word string
	ipm  float64
}

// index отсортирован по key, внутри одного key по убыванию ipm.
type index []dictEntry

// Dictionary частотный словарь строк "<rank> <ipm> <word>".
type Dictionary struct {
	path   string
	idx    atomic.Pointer[index]
	logger *zap.SugaredLogger
}

func NewDictionary(path string, logger *zap.SugaredLogger) (*Dictionary, error) {
	d := &Dictionary{path: path, logger: logger}
	if err := d.Reload(); err != nil {
		return nil, err
	}
	return d, nil
}

// Reload перечитывает файл; при ошибке остаётся прежний индекс.
func (d *Dictionary) Reload() error {
	f, err := os.Open(d.path)
	if err != nil {
		return fmt.Errorf("open dictionary: %w", err)
	}
	defer f.Close()

	idx, err := parseIndex(f)
	if err != nil {
		return fmt.Errorf("parse dictionary %s: %w", d.path, err)
	}
	d.idx.Store(&idx)
	d.logger.Infow("Dictionary loaded", "path", d.path, "words", len(idx))
	return nil
}

func parseIndex(r io.Reader) (index, error) {
	var idx index
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 3 {
			return nil, fmt.Errorf("line %d: want 3 fields, got %d", line, len(fields))
		}
		ipm, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: ipm: %w", line, err)
		}
		word := strings.ToLower(fields[2])
		key, ok := keyOf(word)
		if !ok {
			continue
		}
		idx = append(idx, dictEntry{key: key, word: word, ipm: ipm})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	slices.SortStableFunc(idx, func(a, b dictEntry) int {
		if c := strings.Compare(a.key, b.key); c != 0 {
			return c
		}
		return cmp.Compare(b.ipm, a.ipm)
	})
	return idx, nil
}

// keyOf T9-ключ слова; false, если в слове есть буквы вне алфавита.
func keyOf(word string) (string, bool) {
	key := make([]byte, 0, len(word))
	for _, r := range word {
		i := charsetOf(r)
		if i < 0 {
			return "", false
		}
		key = append(key, byte(i))
	}
	return string(key), len(key) > 0
}

func prefixKey(prefix []int) string {
	key := make([]byte, len(prefix))
	for i, p := range prefix {
		key[i] = byte(p)
	}
	return string(key)
}

// Predict сначала слова ровно той же длины, затем более длинные с этим
// префиксом; каждая группа по убыванию частоты.
func (d *Dictionary) Predict(prefix []int, max int) []string {
	idx := d.idx.Load()
	if idx == nil || len(prefix) == 0 || max <= 0 {
		return nil
	}
	key := prefixKey(prefix)
	entries := *idx
	start, _ := slices.BinarySearchFunc(entries, key, func(e dictEntry, k string) int {
		return strings.Compare(e.key, k)
	})

	out := make([]string, 0, max)
	i := start
	for ; i < len(entries) && entries[i].key == key; i++ {
		if len(out) < max {
			out = append(out, entries[i].word)
		}
	}
	if len(out) == max {
		return out
	}

	var longer []dictEntry
	for ; i < len(entries) && strings.HasPrefix(entries[i].key, key); i++ {
		longer = append(longer, entries[i])
	}
	slices.SortStableFunc(longer, func(a, b dictEntry) int {
		return cmp.Compare(b.ipm, a.ipm)
	})
	for _, e := range longer {
		if len(out) == max {
			break
		}
		if !slices.Contains(out, e.word) {
			out = append(out, e.word)
		}
	}
	return out
}

// Watch перечитывает словарь при изменении файла, пока не отменён ctx.
func (d *Dictionary) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Следим за каталогом: редакторы заменяют файл целиком
	if err := watcher.Add(filepath.Dir(d.path)); err != nil {
		return fmt.Errorf("watch directory: %w", err)
	}

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()
	const debounceDelay = 200 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != filepath.Base(d.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDelay, func() {
				if err := d.Reload(); err != nil {
					d.logger.Warnw("Dictionary reload failed", "error", err)
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			d.logger.Warnw("Dictionary watcher error", "error", err)
		}
	}
}

var _ Predictor = (*Dictionary)(nil)
