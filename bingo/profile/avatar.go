package profile

import (
	"net/url"

	"github.com/gosuda/portal-bingo/bingo/store"
)

// genericFigure stands in for Origins users whose figure is unknown.
const genericFigure = "hr-100-61.hd-180-1.ch-210-66.lg-270-82"

// Avatars holds the image URLs the client renders for a player.
type Avatars struct {
	Small    string `json:"small"`
	Large    string `json:"large"`
	Full     string `json:"full"`
	HeadOnly string `json:"headOnly"`
}

// AvatarURLs builds image URLs for name. figure may be empty.
func AvatarURLs(server store.AvatarServer, name, figure string) Avatars {
	return Avatars{
		Small:    avatarURL(server, name, figure, "s"),
		Large:    avatarURL(server, name, figure, "b"),
		Full:     fullAvatarURL(server, name, figure),
		HeadOnly: headOnlyURL(server, name, figure),
	}
}

func avatarURL(server store.AvatarServer, name, figure, size string) string {
	if server == store.ServerOrigins && figure != "" {
		return "https://www.habbo.com/habbo-imaging/avatarimage?figure=" + url.QueryEscape(figure) +
			"&direction=4&head_direction=4&size=" + size
	}
	host := "https://origins.habbo.es"
	if server == store.ServerES {
		host = "https://www.habbo.es"
	}
	return host + "/habbo-imaging/avatarimage?user=" + url.QueryEscape(name) +
		"&action=std&direction=2&head_direction=3&gesture=std&size=" + size
}

func fullAvatarURL(server store.AvatarServer, name, figure string) string {
	if server == store.ServerOrigins && figure != "" {
		return "https://www.habbo.com/habbo-imaging/avatarimage?figure=" + url.QueryEscape(figure) +
			"&direction=4&head_direction=4&size=m"
	}
	host := "https://origins.habbo.es"
	if server == store.ServerES {
		host = "https://www.habbo.es"
	}
	return host + "/habbo-imaging/avatarimage?user=" + url.QueryEscape(name) +
		"&action=none,crr=5&direction=2&head_direction=2&gesture=std&size=m"
}

func headOnlyURL(server store.AvatarServer, name, figure string) string {
	if server == store.ServerES {
		return "https://www.habbo.es/habbo-imaging/avatarimage?user=" + url.QueryEscape(name) +
			"&action=none,crr=5&direction=2&head_direction=2&gesture=std&size=m&headonly=1"
	}
	if figure == "" {
		figure = genericFigure
	}
	return "https://www.habbo.com/habbo-imaging/avatarimage?figure=" + url.QueryEscape(figure) +
		"&direction=4&head_direction=4&size=s&headonly=1"
}
