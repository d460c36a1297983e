package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		opts       Options
		want       string
		wantReason Reason
		wantErr    bool
	}{
		{name: "strips at and folds case", input: "@Foo_1", want: "foo_1"},
		{name: "trims whitespace", input: "  bar.baz  ", want: "bar.baz"},
		{name: "case sensitive", input: "@MixedCase", opts: Options{CaseSensitive: true}, want: "MixedCase"},
		{name: "empty", input: "", wantErr: true, wantReason: EmptyInput},
		{name: "only at", input: "@", wantErr: true, wantReason: EmptyInput},
		{name: "invalid character", input: "bad name!", wantErr: true, wantReason: InvalidCharacter},
		{name: "dash not allowed", input: "a-b", wantErr: true, wantReason: InvalidCharacter},
		{name: "max length", input: "abcdefghijabcdefghijabcdefghij", want: "abcdefghijabcdefghijabcdefghij"},
		{name: "too long", input: "abcdefghijabcdefghijabcdefghijk", wantErr: true, wantReason: TooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.input, tt.opts)
			if tt.wantErr {
				require.Error(t, err)
				reason, ok := ReasonOf(err)
				require.True(t, ok)
				assert.Equal(t, tt.wantReason, reason)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseList(t *testing.T) {
	t.Run("dedupes and drops empty tokens", func(t *testing.T) {
		got, problems := ParseList("a, b,,a", Options{})
		assert.Equal(t, []string{"a", "b"}, got)
		assert.Empty(t, problems)
	})

	t.Run("newline separated", func(t *testing.T) {
		got, problems := ParseList("@one\n@Two\r\nthree\n", Options{})
		assert.Equal(t, []string{"one", "two", "three"}, got)
		assert.Empty(t, problems)
	})

	t.Run("collects invalid tokens", func(t *testing.T) {
		got, problems := ParseList("good;bad!;also_good", Options{})
		assert.Equal(t, []string{"good", "also_good"}, got)
		require.Len(t, problems, 1)
		assert.Equal(t, "bad!", problems[0].Input)
		assert.Equal(t, InvalidCharacter, problems[0].Reason)
	})

	t.Run("case variants dedupe after folding", func(t *testing.T) {
		got, _ := ParseList("Alice,alice,ALICE", Options{})
		assert.Equal(t, []string{"alice"}, got)
	})

	t.Run("mixed separators only split on the first found", func(t *testing.T) {
		got, problems := ParseList("a,b\nc", Options{})
		assert.Equal(t, []string{"a"}, got)
		require.Len(t, problems, 1)
		assert.Equal(t, "b\nc", problems[0].Input)
	})

	t.Run("single token", func(t *testing.T) {
		got, problems := ParseList("solo", Options{})
		assert.Equal(t, []string{"solo"}, got)
		assert.Empty(t, problems)
	})

	t.Run("blank input", func(t *testing.T) {
		got, problems := ParseList("   ", Options{})
		assert.Empty(t, got)
		assert.Empty(t, problems)
	})
}

func TestParseTargets(t *testing.T) {
	got, err := ParseTargets("x y bad!")
	assert.Equal(t, []string{"x", "y"}, got)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid character")

	got, err = ParseTargets("x y")
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, got)
}

func TestDedupe(t *testing.T) {
	got, problems := Dedupe([]string{"@A", "b", "a", "c,d"}, Options{})
	assert.Equal(t, []string{"a", "b"}, got)
	require.Len(t, problems, 1)
	assert.Equal(t, "c,d", problems[0].Input)
}

func TestValidateProxy(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    *Proxy
		wantErr bool
	}{
		{name: "empty is allowed", input: "", want: nil},
		{name: "ip and port", input: "10.0.0.1:8080", want: &Proxy{Host: "10.0.0.1", Port: 8080}},
		{name: "with credentials", input: "192.168.1.2:3128:user:pass", want: &Proxy{Host: "192.168.1.2", Port: 3128, Username: "user", Password: "pass"}},
		{name: "missing port", input: "10.0.0.1", wantErr: true},
		{name: "octet out of range", input: "256.0.0.1:80", wantErr: true},
		{name: "port zero", input: "10.0.0.1:0", wantErr: true},
		{name: "port too high", input: "10.0.0.1:65536", wantErr: true},
		{name: "hostname", input: "proxy.local:80", wantErr: true},
		{name: "three parts", input: "10.0.0.1:80:user", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateProxy(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				reason, ok := ReasonOf(err)
				require.True(t, ok)
				assert.Equal(t, InvalidProxy, reason)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProxy_URL(t *testing.T) {
	p := Proxy{Host: "10.0.0.1", Port: 8080}
	assert.Equal(t, "10.0.0.1:8080", p.Address())
	assert.Equal(t, "http://10.0.0.1:8080", p.URL())
}
