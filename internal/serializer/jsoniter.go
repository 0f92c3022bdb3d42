package serializer

import (
	jsoniter "github.com/json-iterator/go"
)

// JSON is the codec for every persisted document.
//
// jsoniter keeps the same de.ser behavior as encoding/json but:
// - UseNumber avoids float64 mangling of the mailbox last_id and of unix timestamps
//   written by agents in other languages.
// - SortMapKeys makes persisted documents byte-stable across writes, which keeps
//   store diffs and CAS retries cheap to reason about.
var JSON = jsoniter.Config{
	UseNumber:   true,
	SortMapKeys: true,
}.Froze()
