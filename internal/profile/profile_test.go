package profile

import "testing"

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		wantErr bool
	}{
		{
			name:    "valid sqlite",
			profile: Profile{Mode: "dev", Driver: "sqlite", DSN: "promptlens.db", Port: 8081},
		},
		{
			name:    "valid postgres",
			profile: Profile{Mode: "prod", Driver: "postgres", DSN: "postgres://localhost/promptlens", Port: 8081},
		},
		{
			name:    "unknown driver",
			profile: Profile{Mode: "dev", Driver: "mysql", DSN: "x", Port: 8081},
			wantErr: true,
		},
		{
			name:    "missing dsn",
			profile: Profile{Mode: "dev", Driver: "sqlite", Port: 8081},
			wantErr: true,
		},
		{
			name:    "bad port",
			profile: Profile{Mode: "dev", Driver: "sqlite", DSN: "x", Port: 70000},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.profile.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateNormalizesMode(t *testing.T) {
	p := Profile{Mode: "staging", Driver: "sqlite", DSN: "x", Port: 8081}
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if p.Mode != "dev" {
		t.Errorf("Mode = %q, want dev", p.Mode)
	}
}

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("PROMPTLENS_AI_EMBEDDING_DIMENSIONS", "")
	t.Setenv("PROMPTLENS_AI_EMBEDDING_MODEL", "")
	t.Setenv("PROMPTLENS_AI_LLM_MODEL", "")

	p := Profile{}
	p.FromEnv()
	if p.AIEmbeddingModel != "text-embedding-3-small" {
		t.Errorf("AIEmbeddingModel = %q", p.AIEmbeddingModel)
	}
	if p.AIEmbeddingDimensions != 1536 {
		t.Errorf("AIEmbeddingDimensions = %d, want 1536", p.AIEmbeddingDimensions)
	}
	if p.AILLMModel != "gpt-4o-mini" {
		t.Errorf("AILLMModel = %q", p.AILLMModel)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("PROMPTLENS_AI_EMBEDDING_MODEL", "custom-embed")
	t.Setenv("PROMPTLENS_AI_EMBEDDING_DIMENSIONS", "768")

	p := Profile{}
	p.FromEnv()
	if p.AIEmbeddingModel != "custom-embed" {
		t.Errorf("AIEmbeddingModel = %q, want custom-embed", p.AIEmbeddingModel)
	}
	if p.AIEmbeddingDimensions != 768 {
		t.Errorf("AIEmbeddingDimensions = %d, want 768", p.AIEmbeddingDimensions)
	}
}
