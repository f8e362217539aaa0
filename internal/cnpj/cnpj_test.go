package cnpj_test

import (
	"testing"

	"github.com/jmoraes-92/fiscal-facil-2.0/internal/cnpj"
	"github.com/jmoraes-92/fiscal-facil-2.0/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMask_Progressive(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"1", "1"},
		{"11", "11"},
		{"112", "11.2"},
		{"11222", "11.222"},
		{"112223", "11.222.3"},
		{"11222333", "11.222.333"},
		{"112223330", "11.222.333/0"},
		{"112223330001", "11.222.333/0001"},
		{"1122233300018", "11.222.333/0001-8"},
		{"11222333000181", "11.222.333/0001-81"},
		{"112223330001819", "11.222.333/0001-819"},
	}

	for _, tc := range cases {
		if got := cnpj.Mask(tc.in); got != tc.want {
			t.Errorf("Mask(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMask_IgnoresNonDigits(t *testing.T) {
	assert.Equal(t, "11.222.333/0001-81", cnpj.Mask("11.222.333/0001-81"))
	assert.Equal(t, "11.222.333/0001-81", cnpj.Mask(" 11a222b333c0001d81 "))
	assert.Equal(t, "", cnpj.Mask("abc./-"))
}

func TestMask_Idempotent(t *testing.T) {
	inputs := []string{"", "1", "11.2", "11222333000181", "xx11-22 2333/000181yy", "1234567890123456789", "éçã 42"}
	for _, s := range inputs {
		masked := cnpj.Mask(s)
		assert.Equal(t, masked, cnpj.Mask(cnpj.Unmask(masked)), "input %q", s)
	}
}

func TestUnmask_RoundTrip(t *testing.T) {
	inputs := map[string]string{
		"":                   "",
		"11.222.333/0001-81": "11222333000181",
		"ab1c2":              "12",
		"1234567890123456":   "1234567890123456",
	}
	for in, digits := range inputs {
		assert.Equal(t, digits, cnpj.Unmask(cnpj.Mask(in)), "input %q", in)
	}
}

func TestNormalize(t *testing.T) {
	got, err := cnpj.Normalize("11.222.333/0001-81")
	require.NoError(t, err)
	assert.Equal(t, "11222333000181", got)
	assert.True(t, cnpj.Complete("11.222.333/0001-81"))

	for _, bad := range []string{"", "1122233300018", "112223330001811", "11.222.333/0001-8"} {
		_, err := cnpj.Normalize(bad)
		var validation *domain.ErrValidation
		require.ErrorAs(t, err, &validation, "input %q", bad)
		assert.Equal(t, cnpj.InvalidMessage, validation.Message)
	}
}
