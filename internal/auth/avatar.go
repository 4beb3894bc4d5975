package auth

import "net/url"

const avatarBaseURL = "https://api.dicebear.com/7.x/avataaars/svg"

// AvatarURL derives the avatar for a username. The same name always
// yields the same picture.
func AvatarURL(username string) string {
	return avatarBaseURL + "?seed=" + url.QueryEscape(username)
}
