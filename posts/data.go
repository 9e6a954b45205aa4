package posts

import (
	"fmt"
	"strconv"
	"time"

	"github.com/cppla/postcore/models"
)

// Hash fields of post:<pid>.
const (
	fieldPid         = "pid"
	fieldUID         = "uid"
	fieldTid         = "tid"
	fieldCid         = "cid"
	fieldContent     = "content"
	fieldTimestamp   = "timestamp"
	fieldIsPrivate   = "isPrivate"
	fieldIsAnonymous = "isAnonymous"
	fieldToPid       = "toPid"
	fieldIP          = "ip"
	fieldHandle      = "handle"
	fieldReplies     = "replies"
	fieldDeleted     = "deleted"
)

// encodePost flattens p into hash fields. Optional fields are omitted when empty.
func encodePost(p *models.Post) map[string]string {
	m := map[string]string{
		fieldPid:         strconv.FormatInt(p.ID, 10),
		fieldUID:         strconv.FormatInt(p.Author.UID(), 10),
		fieldTid:         strconv.FormatInt(p.TopicID, 10),
		fieldCid:         strconv.FormatInt(p.CategoryID, 10),
		fieldContent:     p.Content,
		fieldTimestamp:   strconv.FormatInt(p.Timestamp.UnixMilli(), 10),
		fieldIsPrivate:   strconv.FormatBool(p.IsPrivate),
		fieldIsAnonymous: strconv.FormatBool(p.IsAnonymous),
	}
	if p.ReplyToID > 0 {
		m[fieldToPid] = strconv.FormatInt(p.ReplyToID, 10)
	}
	if p.IP != "" {
		m[fieldIP] = p.IP
	}
	if p.Handle != "" {
		m[fieldHandle] = p.Handle
	}
	return m
}

// decodePost rebuilds a post from its hash fields.
func decodePost(m map[string]string) (*models.Post, error) {
	var (
		p   models.Post
		err error
	)
	ints := []struct {
		field string
		dst   *int64
	}{
		{fieldPid, &p.ID},
		{fieldUID, &p.UID},
		{fieldTid, &p.TopicID},
		{fieldCid, &p.CategoryID},
		{fieldToPid, &p.ReplyToID},
		{fieldReplies, &p.Replies},
	}
	for _, f := range ints {
		if *f.dst, err = parseInt(m[f.field]); err != nil {
			return nil, fmt.Errorf("field %s: %w", f.field, err)
		}
	}
	ms, err := parseInt(m[fieldTimestamp])
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", fieldTimestamp, err)
	}
	p.Timestamp = time.UnixMilli(ms)
	p.Content = m[fieldContent]
	p.IP = m[fieldIP]
	p.Handle = m[fieldHandle]
	p.IsPrivate = parseBool(m[fieldIsPrivate])
	p.IsAnonymous = parseBool(m[fieldIsAnonymous])
	p.Deleted = parseBool(m[fieldDeleted])

	switch {
	case p.IsAnonymous:
		p.Author = models.Anonymous()
	case p.UID > 0:
		p.Author = models.Identified(p.UID)
	default:
		p.Author = models.Guest()
	}
	return &p, nil
}

func parseInt(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

// parseBool accepts both "true" and the "1" older records carry.
func parseBool(s string) bool {
	return s == "1" || s == "true"
}
