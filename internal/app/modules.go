package app

import (
	"github.com/vk/framegridgo/internal/device"
	"github.com/vk/framegridgo/internal/node"
	"github.com/vk/framegridgo/modules/capture"
	"github.com/vk/framegridgo/modules/constant"
	"github.com/vk/framegridgo/modules/delay"
	"github.com/vk/framegridgo/modules/lfo"
	"github.com/vk/framegridgo/modules/mix"
	"github.com/vk/framegridgo/modules/pattern"
	"github.com/vk/framegridgo/modules/transform"
)

// coreModules is the definitive list of all node modules that are compiled
// into the framegrid binary. The capture module binds to the app's source
// device.
func coreModules(src device.Source) []node.Module {
	return []node.Module{
		&pattern.Module{},
		&constant.Module{},
		&lfo.Module{},
		&mix.Module{},
		&transform.Module{},
		&delay.Module{},
		&capture.Module{Source: src},
	}
}
