package main

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daimatz/goretrolambda/pkg/classfile"
	"github.com/daimatz/goretrolambda/pkg/classfile/classfiletest"
	"github.com/daimatz/goretrolambda/pkg/config"
)

func TestRunToJar(t *testing.T) {
	in := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(in, "app"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(in, "app", "Greeter.class"),
		classfiletest.NewInterface("app/Greeter").
			Method(classfile.AccPublic, "greet", "()V").
			Build(t), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "app", "Main.class"),
		classfiletest.New("app/Main", "java/lang/Object", classfile.AccPublic|classfile.AccSuper).
			Method(classfile.AccPublic|classfile.AccStatic, "main", "([Ljava/lang/String;)V").
			Build(t), 0o644))

	cfg := config.Default()
	cfg.InputDir = in
	cfg.OutputDir = filepath.Join(t.TempDir(), "out", "app.jar")
	cfg.TargetVersion = 50
	require.NoError(t, cfg.Validate())
	require.NoError(t, run(context.Background(), cfg))

	zr, err := zip.OpenReader(cfg.OutputDir)
	require.NoError(t, err)
	defer zr.Close()
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"app/Greeter.class", "app/Main.class"}, names)
}

func TestOverrideFromFlags(t *testing.T) {
	cfg := config.Default()
	cfg.InputDir = "from-file"
	overrideFromFlags(cfg, "", "out", 50, 0, "")
	assert.Equal(t, "from-file", cfg.InputDir)
	assert.Equal(t, "out", cfg.OutputDir)
	assert.Equal(t, 50, cfg.TargetVersion)
	assert.Equal(t, 4, cfg.Workers)
}

func TestFindConfigPath(t *testing.T) {
	t.Setenv("RETROLAMBDA_CONFIG", "")
	tests := []struct {
		name         string
		flag, env    string
		wantPath     string
		wantExplicit bool
	}{
		{"flag", "x.toml", "/etc/retro.toml", "x.toml", true},
		{"env", "", "/etc/retro.toml", "/etc/retro.toml", true},
		{"default", "", "", config.FileName, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("RETROLAMBDA_CONFIG", tt.env)
			path, explicit := findConfigPath(tt.flag)
			assert.Equal(t, tt.wantPath, path)
			assert.Equal(t, tt.wantExplicit, explicit)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("RETROLAMBDA_CONFIG", "")

	// カレントディレクトリの既定ファイルはなくてもよい
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)

	// 明示したファイルが存在しなければエラー
	_, err = loadConfig(filepath.Join(dir, "typo.toml"))
	assert.ErrorContains(t, err, "typo.toml")

	t.Setenv("RETROLAMBDA_CONFIG", filepath.Join(dir, "missing.toml"))
	_, err = loadConfig("")
	assert.ErrorContains(t, err, "missing.toml")

	path := filepath.Join(dir, "retro.toml")
	require.NoError(t, os.WriteFile(path, []byte("target-version = 49\n"), 0o644))
	cfg, err = loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 49, cfg.TargetVersion)
}
