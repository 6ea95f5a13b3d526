// Package pagination encodes keyset cursors for the trends listing, which is
// ordered by (imported_at, id) descending.
package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidCursor wraps every decoding failure.
var ErrInvalidCursor = errors.New("invalid cursor")

// EncodeCursor returns the cursor that resumes the listing after the trend
// with the given import time and id. The key is "<unix nanos>:<id>", base64
// encoded without padding so it can sit in a query string as is.
func EncodeCursor(importedAt time.Time, trendID int64) string {
	key := strconv.FormatInt(importedAt.UnixNano(), 10) + ":" + strconv.FormatInt(trendID, 10)
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

// DecodeCursor parses a cursor produced by EncodeCursor. The time is returned
// in UTC. Trend ids start at 1, so a cursor naming id 0 or below is rejected
// along with one carrying a timestamp at or before the epoch.
func DecodeCursor(cursor string) (time.Time, int64, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("%w: bad encoding: %v", ErrInvalidCursor, err)
	}

	nanosPart, idPart, ok := strings.Cut(string(raw), ":")
	if !ok {
		return time.Time{}, 0, fmt.Errorf("%w: missing separator", ErrInvalidCursor)
	}

	nanos, err := strconv.ParseInt(nanosPart, 10, 64)
	if err != nil || nanos <= 0 {
		return time.Time{}, 0, fmt.Errorf("%w: bad import time %q", ErrInvalidCursor, nanosPart)
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return time.Time{}, 0, fmt.Errorf("%w: bad trend id %q", ErrInvalidCursor, idPart)
	}

	return time.Unix(0, nanos).UTC(), id, nil
}
