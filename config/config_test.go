package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"DISCORD_TOKEN", "GUILD_ID", "LOG_GUILD_ID", "MUTE_DURATION", "VOICE_MUTE_DURATION", "EXPIRY_INTERVAL", "DB_DSN", "LISTEN_ADDR", "MOD_ROLE_IDS"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MuteDuration != time.Hour {
		t.Errorf("MuteDuration = %v, want 1h", cfg.MuteDuration)
	}
	if cfg.VoiceMuteDuration != time.Hour {
		t.Errorf("VoiceMuteDuration = %v, want mute duration default", cfg.VoiceMuteDuration)
	}
	if cfg.ExpiryInterval != 5*time.Second {
		t.Errorf("ExpiryInterval = %v, want 5s", cfg.ExpiryInterval)
	}
	if cfg.DBDsn == "" {
		t.Error("DBDsn default missing")
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
}

func TestLoadDurations(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name: "custom_mute_duration",
			env:  map[string]string{"MUTE_DURATION": "30m"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.MuteDuration != 30*time.Minute {
					t.Errorf("MuteDuration = %v", cfg.MuteDuration)
				}
				if cfg.VoiceMuteDuration != 30*time.Minute {
					t.Errorf("VoiceMuteDuration should follow MuteDuration, got %v", cfg.VoiceMuteDuration)
				}
			},
		},
		{
			name: "voice_duration_overrides",
			env:  map[string]string{"MUTE_DURATION": "1h", "VOICE_MUTE_DURATION": "15m"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.VoiceMuteDuration != 15*time.Minute {
					t.Errorf("VoiceMuteDuration = %v", cfg.VoiceMuteDuration)
				}
			},
		},
		{
			name: "custom_expiry_interval",
			env:  map[string]string{"EXPIRY_INTERVAL": "10s"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.ExpiryInterval != 10*time.Second {
					t.Errorf("ExpiryInterval = %v", cfg.ExpiryInterval)
				}
			},
		},
		{name: "invalid_mute_duration", env: map[string]string{"MUTE_DURATION": "soon"}, wantErr: true},
		{name: "negative_expiry_interval", env: map[string]string{"EXPIRY_INTERVAL": "-5s"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{"MUTE_DURATION", "VOICE_MUTE_DURATION", "EXPIRY_INTERVAL"} {
				t.Setenv(k, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := Load()
			if tt.wantErr {
				if err == nil {
					t.Fatal("Load should fail")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestLoadModeratorRoles(t *testing.T) {
	t.Setenv("MOD_ROLE_IDS", "111, 222 ,,333")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"111", "222", "333"}
	if len(cfg.ModeratorRoleIDs) != len(want) {
		t.Fatalf("ModeratorRoleIDs = %v, want %v", cfg.ModeratorRoleIDs, want)
	}
	for i := range want {
		if cfg.ModeratorRoleIDs[i] != want[i] {
			t.Errorf("role[%d] = %q, want %q", i, cfg.ModeratorRoleIDs[i], want[i])
		}
	}
}

func TestIsModeratorRole(t *testing.T) {
	cfg := &Config{ModeratorRoleIDs: []string{"mod", "admin"}}
	if !cfg.IsModeratorRole([]string{"member", "mod"}) {
		t.Error("member with mod role should pass")
	}
	if cfg.IsModeratorRole([]string{"member"}) {
		t.Error("member without mod role should fail")
	}
	if cfg.IsModeratorRole(nil) {
		t.Error("empty role set should fail")
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(); err == nil {
		t.Error("empty config should not validate")
	}
	cfg = &Config{DiscordToken: "t", GuildID: "g", LogMutesChannel: "c"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLogGuildDefaultsToGuild(t *testing.T) {
	t.Setenv("GUILD_ID", "g1")
	t.Setenv("LOG_GUILD_ID", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogGuildID != "g1" {
		t.Errorf("LogGuildID = %q, want guild id", cfg.LogGuildID)
	}
}
