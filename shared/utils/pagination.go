package utils

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

const (
	offsetCursorSeparator = ":"

	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

// EncodeOffsetCursor кодирует позицию в отсортированном списке и id последнего
// отданного элемента в строку курсора base64.
func EncodeOffsetCursor(offset int, lastID string) string {
	if offset <= 0 || lastID == "" {
		return ""
	}
	data := strconv.Itoa(offset) + offsetCursorSeparator + lastID
	return base64.URLEncoding.EncodeToString([]byte(data))
}

// DecodeOffsetCursor декодирует курсор. Пустой курсор означает начало списка.
func DecodeOffsetCursor(cursor string) (offset int, lastID string, err error) {
	if cursor == "" {
		return 0, "", nil
	}
	decoded, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, "", fmt.Errorf("invalid cursor base64 format: %w", err)
	}
	parts := strings.SplitN(string(decoded), offsetCursorSeparator, 2)
	if len(parts) != 2 || parts[1] == "" {
		return 0, "", fmt.Errorf("invalid cursor format")
	}
	offset, err = strconv.Atoi(parts[0])
	if err != nil || offset <= 0 {
		return 0, "", fmt.Errorf("invalid cursor offset %q", parts[0])
	}
	return offset, parts[1], nil
}

// ParseLimit возвращает размер страницы из параметра запроса, не больше MaxPageLimit.
func ParseLimit(raw string) (int, error) {
	if raw == "" {
		return DefaultPageLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("limit must be a positive integer, got %q", raw)
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return limit, nil
}

// PageStart определяет начало следующей страницы. Если список сдвинулся после
// выдачи курсора, продолжает сразу после lastID.
func PageStart(ids []string, offset int, lastID string) int {
	if offset == 0 {
		return 0
	}
	if offset <= len(ids) && ids[offset-1] == lastID {
		return offset
	}
	for i, id := range ids {
		if id == lastID {
			return i + 1
		}
	}
	if offset > len(ids) {
		return len(ids)
	}
	return offset
}
