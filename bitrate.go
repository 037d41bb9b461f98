package callcore

import (
	"github.com/sirupsen/logrus"
)

// bitrateTier is one row of the video encoder parameter table. Tiers trade
// latency against quality: the high-FPS tiers disable the encoder's
// automatic bitrate adaptation and pin a narrow band, the low-FPS tier
// re-enables adaptation with a wide band for constrained links.
type bitrateTier struct {
	autoset bool
	minKbps int32
	maxKbps int32
}

// videoBitrateTiers maps the configured frame rate to encoder parameters.
// A frame rate with no row leaves the encoder at transport defaults.
// The 20 FPS row carries min above max on purpose: with autoset on, the
// encoder reads the two bounds independently.
var videoBitrateTiers = map[int]bitrateTier{
	30: {autoset: false, minKbps: 10000, maxKbps: 11000},
	25: {autoset: false, minKbps: 10000, maxKbps: 11000},
	20: {autoset: true, minKbps: 2700, maxKbps: 180},
}

// applyBitrateTier pushes the encoder options for the configured frame rate
// to the transport. The frame rate is read from live settings at call time,
// so a configuration change applies to the next (re)assertion. Safe to call
// with any lock state; it only talks to the transport.
func (m *Manager) applyBitrateTier(friendID uint32) {
	fps := m.settings.VideoFPS()
	tier, ok := videoBitrateTiers[fps]
	if !ok {
		logrus.WithFields(logrus.Fields{
			"function":  "applyBitrateTier",
			"friend_id": friendID,
			"fps":       fps,
		}).Debug("No encoder tier for frame rate, leaving transport defaults")
		return
	}

	autoset := int32(0)
	if tier.autoset {
		autoset = 1
	}

	parseTransportErr("set encoder option", friendID,
		m.transport.SetEncoderOption(friendID, EncoderVideoBitrateAutoset, autoset))
	parseTransportErr("set encoder option", friendID,
		m.transport.SetEncoderOption(friendID, EncoderVideoMaxBitrate, tier.maxKbps))
	parseTransportErr("set encoder option", friendID,
		m.transport.SetEncoderOption(friendID, EncoderVideoMinBitrate, tier.minKbps))

	logrus.WithFields(logrus.Fields{
		"function":  "applyBitrateTier",
		"friend_id": friendID,
		"fps":       fps,
		"autoset":   tier.autoset,
		"min_kbps":  tier.minKbps,
		"max_kbps":  tier.maxKbps,
	}).Debug("Applied video encoder tier")
}
