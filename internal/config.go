package internal

import (
	"fmt"
	"time"
)

// Config is shared by the server and the read-only viewer so both read
// the same .env file.
type Config struct {
	Host      string `env:"HOST,default=localhost"`
	Port      int    `env:"PORT,default=8080"`
	DebugPort int    `env:"DEBUG_PORT"`
	LogLevel  string `env:"LOG_LEVEL,required=true"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`

	JWTSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`

	ModerationCharReplacement string `env:"MODERATION_CHARACTER_REPLACEMENT,required=true"`

	LimitMessages                *int          `env:"LIMIT_MESSAGES"`
	PresenceBufferSize           int           `env:"PRESENCE_BUFFER_SIZE,required=true"`
	SinkTimeout                  time.Duration `env:"SINK_TIMEOUT,required=true"`
	StatsInterval                time.Duration `env:"STATS_INTERVAL,required=true"`
	IndexBatchSize               int           `env:"INDEX_BATCH_SIZE,required=true"`
	IndexBufferTimeout           time.Duration `env:"INDEX_BUFFER_TIMEOUT,required=true"`
	BroadcastConversationUpdates bool          `env:"BROADCAST_CONVERSATION_UPDATES"`
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"MODERATION_CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
