package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// SiteTag - площадка, с которой пришёл голос. Значение используется как ключ
// в User.LastVoted и сохраняется в хранилище как есть.
type SiteTag string

const (
	// SiteDBLS - discordbotlist.com
	SiteDBLS SiteTag = "dbls"
	// SiteTopGG - голос за бота на top.gg
	SiteTopGG SiteTag = "topgg"
	// SiteTopGGServer - голос за сервер на top.gg
	SiteTopGGServer SiteTag = "topgg_server"
)

// VoteEvent - нормализованный голос: кто проголосовал и на какой площадке.
type VoteEvent struct {
	UserID int64
	Site   SiteTag
}

// ParseVoteEvent приводит тело webhook'а площадки к VoteEvent.
// Правила проверяются по порядку, побеждает первое совпавшее:
// поле id - DBLS, поля user и guild - сервер на top.gg, только user - бот на top.gg.
func ParseVoteEvent(raw map[string]any) (VoteEvent, error) {
	var (
		field string
		site  SiteTag
	)
	_, hasID := raw["id"]
	_, hasUser := raw["user"]
	_, hasGuild := raw["guild"]

	switch {
	case hasID:
		field, site = "id", SiteDBLS
	case hasUser && hasGuild:
		field, site = "user", SiteTopGGServer
	case hasUser:
		field, site = "user", SiteTopGG
	default:
		return VoteEvent{}, fmt.Errorf("%w: no id or user field", ErrMalformedRequest)
	}

	userID, err := parseUserID(raw[field])
	if err != nil {
		return VoteEvent{}, fmt.Errorf("%w: field %s: %v", ErrMalformedRequest, field, err)
	}
	return VoteEvent{UserID: userID, Site: site}, nil
}

// parseUserID принимает id строкой (snowflake) или числом.
func parseUserID(v any) (int64, error) {
	switch id := v.(type) {
	case string:
		return strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	case json.Number:
		return id.Int64()
	case float64:
		if id != math.Trunc(id) {
			return 0, fmt.Errorf("not an integer: %v", id)
		}
		// float64(math.MaxInt64) округляется до 2^63, поэтому граница строгая.
		if math.Abs(id) >= math.MaxInt64 {
			return 0, fmt.Errorf("out of int64 range: %v", id)
		}
		return int64(id), nil
	case int64:
		return id, nil
	case int:
		return int64(id), nil
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}
