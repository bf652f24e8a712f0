package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOverridesDefaults(t *testing.T) {
	doc := `<eskf_config>
  <gyro_var>2.5e-5</gyro_var>
  <update_bias_gyro>false</update_bias_gyro>
  <phone_heading_install>90</phone_heading_install>
</eskf_config>`
	opts, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)
	assert.InDelta(t, 2.5e-5, opts.GyroVar, 1e-12)
	assert.False(t, opts.UpdateBiasGyro)
	assert.InDelta(t, 90, opts.PhoneHeadingInstallDeg, 1e-9)
	// untouched fields keep their defaults
	assert.InDelta(t, 0.04, opts.ImuDTNominal, 1e-12)
}

func TestParseIgnoresUnknownElements(t *testing.T) {
	doc := `<eskf_config><nonsense>1</nonsense></eskf_config>`
	_, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)
}
