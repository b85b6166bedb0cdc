package task

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"sort"
	"strings"
)

// CodeFingerprint computes the content hash of a task's code body. Empty
// source yields an empty fingerprint rather than an error: fingerprinting is
// a drift detector, not a correctness requirement.
func CodeFingerprint(source []byte) string {
	if len(source) == 0 {
		return ""
	}
	sum := sha256.Sum256(source)
	return hex.EncodeToString(sum[:])
}

// sourceOf locates the file defining fn and returns its contents. Best
// effort: a stripped binary or a deleted source tree degrades to an empty
// fingerprint, logged but non-fatal.
func sourceOf(fn Func) []byte {
	file, name := funcLocation(fn)
	if file == "" {
		return nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		log.Printf("WARNING: source for %s unobtainable (%v); code fingerprint will be empty", name, err)
		return nil
	}
	return data
}

// funcLocation returns the defining file and bare name of fn.
func funcLocation(fn Func) (file, name string) {
	if fn == nil {
		return "", ""
	}
	pc := reflect.ValueOf(fn).Pointer()
	f := runtime.FuncForPC(pc)
	if f == nil {
		return "", ""
	}
	file, _ = f.FileLine(pc)
	name = f.Name()
	// Strip the package path and any parent-function prefix.
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return file, name
}

// configDigest hashes the full construction-time configuration
// deterministically: declared objects by sorted symbolic name and URL,
// parameters by sorted name with JSON-encoded values, plus the mode and
// distribution flag. Every field is length-prefixed to avoid ambiguity.
func configDigest(opts Options) string {
	h := sha256.New()

	writeObjs(h, opts.Inputs)
	writeObjs(h, opts.Outputs)
	writeObjs(h, opts.Mutables)

	names := make([]string, 0, len(opts.Parameters))
	for name := range opts.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)
	writeField(h, []byte{byte(len(names))})
	for _, name := range names {
		writeField(h, []byte(name))
		writeField(h, encodeValue(opts.Parameters[name]))
	}

	writeField(h, []byte{byte(opts.Mode)})
	if opts.Distributed {
		writeField(h, []byte{1})
	} else {
		writeField(h, []byte{0})
	}

	return hex.EncodeToString(h.Sum(nil))
}

func writeObjs(h hash.Hash, objs map[string]Object) {
	names := make([]string, 0, len(objs))
	for name := range objs {
		names = append(names, name)
	}
	sort.Strings(names)
	writeField(h, []byte{byte(len(names))})
	for _, name := range names {
		writeField(h, []byte(name))
		writeField(h, []byte(objs[name].URL()))
	}
}

func writeField(h hash.Hash, data []byte) {
	var length [8]byte
	binary.BigEndian.PutUint64(length[:], uint64(len(data)))
	h.Write(length[:])
	h.Write(data)
}

func encodeValue(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// Unserializable values still need a stable encoding.
		return []byte(fmt.Sprintf("%v", v))
	}
	return data
}

// hashName returns the hex digest of a filename, used for manifest-derived
// task URLs that must stay stable across manifest reorderings.
func hashName(name string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(name)))
	return hex.EncodeToString(sum[:])
}
