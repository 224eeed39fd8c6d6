package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// ViewMorePrefix prefixes the postback payload of the pagination button
// appended to list/carousel pages that have more elements. The full payload
// is "VIEW_MORE:<skip>" so the next page is reconstructible from the event
// alone, without relying on conversation context.
const ViewMorePrefix = "VIEW_MORE"

// ViewMorePayload encodes a pagination postback for the given offset.
func ViewMorePayload(skip int) string {
	return fmt.Sprintf("%s:%d", ViewMorePrefix, skip)
}

// ParseViewMore extracts the skip offset from a pagination postback payload.
func ParseViewMore(payload string) (int, bool) {
	rest, ok := strings.CutPrefix(payload, ViewMorePrefix+":")
	if !ok {
		return 0, false
	}
	skip, err := strconv.Atoi(rest)
	if err != nil || skip < 0 {
		return 0, false
	}
	return skip, true
}
