package rest

import (
	"net/url"
	"strconv"
	"strings"

	apperrors "github.com/rodrigolearns/paperstacks/internal/platform/errors"
	"github.com/rodrigolearns/paperstacks/internal/platform/pagination"
	"github.com/rodrigolearns/paperstacks/internal/services/review/storage/cursor"
)

// timelineOrder accepts the sort orders the timeline endpoint supports.
var timelineOrder = pagination.OrderConfig{Default: "asc", Allowed: []string{"asc", "desc"}}

// parsePageSize reads page_size; zero means the store default.
func parsePageSize(q url.Values) (int, error) {
	raw := strings.TrimSpace(q.Get("page_size"))
	if raw == "" {
		return 0, nil
	}
	size, err := strconv.Atoi(raw)
	if err != nil || size < 0 {
		return 0, apperrors.WithMetadata(apperrors.CodeInvalidArgument,
			"page_size must be a non-negative integer",
			map[string]string{"PageSize": raw})
	}
	return size, nil
}

// decodePageToken decodes and scope-checks page_token. The bool reports
// whether a token was present.
func decodePageToken(q url.Values, scope string) (cursor.Cursor, bool, error) {
	token := strings.TrimSpace(q.Get("page_token"))
	if token == "" {
		return cursor.Cursor{}, false, nil
	}
	c, err := cursor.Decode(token)
	if err != nil {
		return cursor.Cursor{}, false, apperrors.Wrap(apperrors.CodeInvalidArgument, "page token is malformed", err)
	}
	if err := cursor.ValidateScope(c, scope); err != nil {
		return cursor.Cursor{}, false, apperrors.Wrap(apperrors.CodeInvalidArgument, "page token does not match this request", err)
	}
	return c, true, nil
}

// encodeNextPage mints the token for the page after lastSeq.
func encodeNextPage(lastSeq int64, descending bool, scope string) (string, error) {
	return cursor.Encode(cursor.NextPage(lastSeq, descending, scope))
}
