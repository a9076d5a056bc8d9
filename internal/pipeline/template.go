package pipeline

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// ExpandTemplate renders a raw-OCR filename template. Supported fields:
//
//	{page}    1-based page number
//	{id}      page identifier
//	{id-ext}  page identifier without its extension
//
// Integer fields accept an offset, e.g. {page-1} or {page+10}.
func ExpandTemplate(template string, pageno int, pageid string) (string, error) {
	var sb strings.Builder
	for {
		open := strings.IndexByte(template, '{')
		if open < 0 {
			if strings.IndexByte(template, '}') >= 0 {
				return "", fmt.Errorf("unbalanced '}' in template")
			}
			sb.WriteString(template)
			return sb.String(), nil
		}
		sb.WriteString(template[:open])
		close := strings.IndexByte(template[open:], '}')
		if close < 0 {
			return "", fmt.Errorf("unbalanced '{' in template")
		}
		field := template[open+1 : open+close]
		value, err := expandField(field, pageno, pageid)
		if err != nil {
			return "", err
		}
		sb.WriteString(value)
		template = template[open+close+1:]
	}
}

func expandField(field string, pageno int, pageid string) (string, error) {
	switch field {
	case "page":
		return strconv.Itoa(pageno), nil
	case "id":
		return pageid, nil
	case "id-ext":
		return strings.TrimSuffix(pageid, filepath.Ext(pageid)), nil
	}

	// Offset form: base+N or base-N, valid for integer fields only.
	sign := 1
	sep := strings.IndexAny(field, "+-")
	if sep > 0 {
		if field[sep] == '-' {
			sign = -1
		}
		base, offStr := field[:sep], field[sep+1:]
		off, err := strconv.Atoi(offStr)
		if err == nil && base == "page" {
			return strconv.Itoa(pageno + sign*off), nil
		}
	}
	return "", fmt.Errorf("unknown template field %q", field)
}
