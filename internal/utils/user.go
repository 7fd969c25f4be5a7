package utils

import (
	"math/rand"
)

var avatarEmojis = []string{"🌱", "🌿", "🍃", "🌾", "🎋", "🎍", "🌲", "🌳", "🐼", "🦊", "🐨", "🐸"}

// DefaultAvatar 返回一个随机 emoji 作为默认头像
func DefaultAvatar() string {
	return avatarEmojis[rand.Intn(len(avatarEmojis))]
}
