package badger

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/poiesic/expertfinder/core"
	"github.com/poiesic/expertfinder/storage"
)

// Key prefixes for different data types
const (
	documentPrefix     = "doc:"
	snapshotPrefix     = "snap:"
	versionPrefix      = "ver:"
	versionOrderPrefix = "vert:"
	versionSeq         = "verseq"
	generationSeq      = "docgen"
	liveGenerationKey  = "livegen"
	statsKey           = "credstats"
)

// makeDocumentPrefix generates the key prefix for one generation of the
// live set. Format: doc:<16 hex digits>:
func makeDocumentPrefix(gen uint64) []byte {
	return fmt.Appendf(nil, "%s%016x:", documentPrefix, gen)
}

// makeDocumentKey generates a key for a live document in generation gen.
// Format: doc:<gen>:id
func makeDocumentKey(gen uint64, id core.Identifier) []byte {
	return append(makeDocumentPrefix(gen), id...)
}

// makeSnapshotPrefix generates the key prefix for a snapshot's documents.
// Format: snap:commit:
func makeSnapshotPrefix(commitID string) []byte {
	return []byte(snapshotPrefix + commitID + ":")
}

// makeSnapshotKey generates a key for a document copy inside a snapshot.
// Format: snap:commit:id
func makeSnapshotKey(commitID string, id core.Identifier) []byte {
	return append(makeSnapshotPrefix(commitID), id...)
}

// commitFromSnapshotKey extracts the commit ID from a snapshot key.
func commitFromSnapshotKey(key []byte) string {
	rest := key[len(snapshotPrefix):]
	if i := bytes.IndexByte(rest, ':'); i >= 0 {
		rest = rest[:i]
	}
	return string(rest)
}

// makeVersionKey generates a key for a version record by commit ID.
func makeVersionKey(commitID string) []byte {
	return []byte(versionPrefix + commitID)
}

// makeVersionOrderKey generates the history index key for a version.
// Format: prefix:seq, where seq is BigEndian so lexicographic order
// matches creation order.
func makeVersionOrderKey(seq uint64) []byte {
	buf := make([]byte, len(versionOrderPrefix)+8)
	offset := copy(buf, versionOrderPrefix)
	binary.BigEndian.PutUint64(buf[offset:], seq)
	return buf
}

func encodeGeneration(gen uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, gen)
}

func decodeGeneration(val []byte) (uint64, error) {
	if len(val) != 8 {
		return 0, fmt.Errorf("%w: live generation is %d bytes", storage.ErrSerializationFailed, len(val))
	}
	return binary.BigEndian.Uint64(val), nil
}
