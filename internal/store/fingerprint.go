package store

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"

	"github.com/sells-group/mosaic/pkg/regional"
)

// MatrixFingerprint derives a cache key from everything that determines a
// distance matrix: the observation coordinates, the reference system, and the
// region identifiers with their geometry extents and cutoffs. Two inputs with
// the same fingerprint yield the same matrix.
func MatrixFingerprint(obs *regional.Observations, set *regional.RegionSet, maxDist regional.Param) string {
	h := sha256.New()

	writeInt := func(v int) {
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		h.Write(buf[:])
	}
	writeFloat := func(v float64) {
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		h.Write(buf[:])
	}

	writeInt(obs.SRID)
	writeInt(obs.Len())
	for _, c := range obs.Coords {
		writeFloat(c.X())
		writeFloat(c.Y())
	}

	writeInt(len(set.Regions))
	for _, r := range set.Regions {
		h.Write([]byte(r.ID))
		h.Write([]byte{0})
		b := r.Geom.Bounds()
		writeFloat(b.Min(0))
		writeFloat(b.Min(1))
		writeFloat(b.Max(0))
		writeFloat(b.Max(1))
		writeInt(len(r.Geom.FlatCoords()))
	}

	if maxDist.IsSet() {
		for _, id := range set.IDs() {
			writeFloat(maxDist.For(id))
		}
	}

	return hex.EncodeToString(h.Sum(nil))
}
