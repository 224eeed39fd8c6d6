package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wattlebot/wattle/pkg/domain"
)

// Interpolate replaces context tokens in an authored text:
//
//	{context.vars.X}                  captured conversation/subscriber vars
//	{context.user.first_name} …      sender profile fields
//	{context.user_location.lat|lon}  geolocation payload
//	{contact.X}                      contact settings group
//
// Conversation-scoped vars shadow permanent subscriber vars of the same name.
func Interpolate(text string, sess *domain.Session, contact map[string]any) string {
	vars := make(map[string]any, len(sess.PermanentVars)+len(sess.Context.Vars))
	for k, v := range sess.PermanentVars {
		vars[k] = v
	}
	for k, v := range sess.Context.Vars {
		vars[k] = v
	}

	for key, value := range vars {
		text = strings.ReplaceAll(text, "{context.vars."+key+"}", stringify(value))
	}

	user := sess.User
	text = strings.ReplaceAll(text, "{context.user.id}", user.ID)
	text = strings.ReplaceAll(text, "{context.user.first_name}", user.FirstName)
	text = strings.ReplaceAll(text, "{context.user.last_name}", user.LastName)
	text = strings.ReplaceAll(text, "{context.user.language}", user.Language)

	if loc := sess.Context.UserLocation; loc != nil {
		text = strings.ReplaceAll(text, "{context.user_location.lat}", fmt.Sprintf("%g", loc.Lat))
		text = strings.ReplaceAll(text, "{context.user_location.lon}", fmt.Sprintf("%g", loc.Lon))
	}

	for key, value := range contact {
		text = strings.ReplaceAll(text, "{contact."+key+"}", stringify(value))
	}

	return text
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(raw)
	}
}
