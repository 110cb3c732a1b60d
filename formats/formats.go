// Package formats describes the texel layout of the uncompressed image formats that buffered images can be
// created and staged with.
package formats

import (
	"github.com/vkngwrapper/core/v3/core1_0"
)

// Info is the channel count and the number of bits a single texel occupies
type Info struct {
	Channels int
	Bits     int
}

var formatInfo = map[core1_0.Format]Info{
	core1_0.FormatR4G4UnsignedNormalizedPacked:       {2, 8},
	core1_0.FormatR4G4B4A4UnsignedNormalizedPacked:   {4, 16},
	core1_0.FormatB4G4R4A4UnsignedNormalizedPacked:   {4, 16},
	core1_0.FormatR5G6B5UnsignedNormalizedPacked:     {3, 16},
	core1_0.FormatB5G6R5UnsignedNormalizedPacked:     {3, 16},
	core1_0.FormatR5G5B5A1UnsignedNormalizedPacked:   {4, 16},
	core1_0.FormatB5G5R5A1UnsignedNormalizedPacked:   {4, 16},
	core1_0.FormatA1R5G5B5UnsignedNormalizedPacked:   {4, 16},
	core1_0.FormatR8UnsignedNormalized:               {1, 8},
	core1_0.FormatR8SignedNormalized:                 {1, 8},
	core1_0.FormatR8UnsignedInt:                      {1, 8},
	core1_0.FormatR8SignedInt:                        {1, 8},
	core1_0.FormatR8SRGB:                             {1, 8},
	core1_0.FormatR8G8UnsignedNormalized:             {2, 16},
	core1_0.FormatR8G8SignedNormalized:               {2, 16},
	core1_0.FormatR8G8UnsignedInt:                    {2, 16},
	core1_0.FormatR8G8SignedInt:                      {2, 16},
	core1_0.FormatR8G8SRGB:                           {2, 16},
	core1_0.FormatR8G8B8UnsignedNormalized:           {3, 24},
	core1_0.FormatR8G8B8SignedNormalized:             {3, 24},
	core1_0.FormatR8G8B8UnsignedInt:                  {3, 24},
	core1_0.FormatR8G8B8SignedInt:                    {3, 24},
	core1_0.FormatR8G8B8SRGB:                         {3, 24},
	core1_0.FormatB8G8R8UnsignedNormalized:           {3, 24},
	core1_0.FormatB8G8R8SignedNormalized:             {3, 24},
	core1_0.FormatB8G8R8UnsignedInt:                  {3, 24},
	core1_0.FormatB8G8R8SignedInt:                    {3, 24},
	core1_0.FormatB8G8R8SRGB:                         {3, 24},
	core1_0.FormatR8G8B8A8UnsignedNormalized:         {4, 32},
	core1_0.FormatR8G8B8A8SignedNormalized:           {4, 32},
	core1_0.FormatR8G8B8A8UnsignedInt:                {4, 32},
	core1_0.FormatR8G8B8A8SignedInt:                  {4, 32},
	core1_0.FormatR8G8B8A8SRGB:                       {4, 32},
	core1_0.FormatB8G8R8A8UnsignedNormalized:         {4, 32},
	core1_0.FormatB8G8R8A8SignedNormalized:           {4, 32},
	core1_0.FormatB8G8R8A8UnsignedInt:                {4, 32},
	core1_0.FormatB8G8R8A8SignedInt:                  {4, 32},
	core1_0.FormatB8G8R8A8SRGB:                       {4, 32},
	core1_0.FormatA8B8G8R8UnsignedNormalizedPacked:   {4, 32},
	core1_0.FormatA8B8G8R8SignedNormalizedPacked:     {4, 32},
	core1_0.FormatA8B8G8R8UnsignedIntPacked:          {4, 32},
	core1_0.FormatA8B8G8R8SignedIntPacked:            {4, 32},
	core1_0.FormatA8B8G8R8SRGBPacked:                 {4, 32},
	core1_0.FormatA2R10G10B10UnsignedNormalizedPacked: {4, 32},
	core1_0.FormatA2B10G10R10UnsignedNormalizedPacked: {4, 32},
	core1_0.FormatR16UnsignedNormalized:              {1, 16},
	core1_0.FormatR16SignedNormalized:                {1, 16},
	core1_0.FormatR16UnsignedInt:                     {1, 16},
	core1_0.FormatR16SignedInt:                       {1, 16},
	core1_0.FormatR16SignedFloat:                     {1, 16},
	core1_0.FormatR16G16UnsignedNormalized:           {2, 32},
	core1_0.FormatR16G16SignedNormalized:             {2, 32},
	core1_0.FormatR16G16UnsignedInt:                  {2, 32},
	core1_0.FormatR16G16SignedInt:                    {2, 32},
	core1_0.FormatR16G16SignedFloat:                  {2, 32},
	core1_0.FormatR16G16B16UnsignedNormalized:        {3, 48},
	core1_0.FormatR16G16B16SignedNormalized:          {3, 48},
	core1_0.FormatR16G16B16UnsignedInt:               {3, 48},
	core1_0.FormatR16G16B16SignedInt:                 {3, 48},
	core1_0.FormatR16G16B16SignedFloat:               {3, 48},
	core1_0.FormatR16G16B16A16UnsignedNormalized:     {4, 64},
	core1_0.FormatR16G16B16A16SignedNormalized:       {4, 64},
	core1_0.FormatR16G16B16A16UnsignedInt:            {4, 64},
	core1_0.FormatR16G16B16A16SignedInt:              {4, 64},
	core1_0.FormatR16G16B16A16SignedFloat:            {4, 64},
	core1_0.FormatR32UnsignedInt:                     {1, 32},
	core1_0.FormatR32SignedInt:                       {1, 32},
	core1_0.FormatR32SignedFloat:                     {1, 32},
	core1_0.FormatR32G32UnsignedInt:                  {2, 64},
	core1_0.FormatR32G32SignedInt:                    {2, 64},
	core1_0.FormatR32G32SignedFloat:                  {2, 64},
	core1_0.FormatR32G32B32UnsignedInt:               {3, 96},
	core1_0.FormatR32G32B32SignedInt:                 {3, 96},
	core1_0.FormatR32G32B32SignedFloat:               {3, 96},
	core1_0.FormatR32G32B32A32UnsignedInt:            {4, 128},
	core1_0.FormatR32G32B32A32SignedInt:              {4, 128},
	core1_0.FormatR32G32B32A32SignedFloat:            {4, 128},
	core1_0.FormatR64UnsignedInt:                     {1, 64},
	core1_0.FormatR64SignedInt:                       {1, 64},
	core1_0.FormatR64SignedFloat:                     {1, 64},
	core1_0.FormatR64G64UnsignedInt:                  {2, 128},
	core1_0.FormatR64G64SignedInt:                    {2, 128},
	core1_0.FormatR64G64SignedFloat:                  {2, 128},
	core1_0.FormatR64G64B64UnsignedInt:               {3, 192},
	core1_0.FormatR64G64B64SignedInt:                 {3, 192},
	core1_0.FormatR64G64B64SignedFloat:               {3, 192},
	core1_0.FormatR64G64B64A64UnsignedInt:            {4, 256},
	core1_0.FormatR64G64B64A64SignedInt:              {4, 256},
	core1_0.FormatR64G64B64A64SignedFloat:            {4, 256},
	core1_0.FormatB10G11R11UnsignedFloatPacked:       {3, 32},
	core1_0.FormatE5B9G9R9UnsignedFloatPacked:        {3, 32},
	core1_0.FormatD16UnsignedNormalized:              {1, 16},
	core1_0.FormatD24X8UnsignedNormalizedPacked:      {2, 32},
	core1_0.FormatD32SignedFloat:                     {1, 32},
	core1_0.FormatS8UnsignedInt:                      {1, 8},
	core1_0.FormatD16UnsignedNormalizedS8UnsignedInt: {2, 24},
	core1_0.FormatD24UnsignedNormalizedS8UnsignedInt: {2, 32},
	core1_0.FormatD32SignedFloatS8UnsignedInt:        {2, 40},
}

// Lookup returns the texel layout for format. ok is false for compressed and unknown formats.
func Lookup(format core1_0.Format) (info Info, ok bool) {
	info, ok = formatInfo[format]
	return info, ok
}

// BytesPerPixel is the number of bytes needed to stage one texel of format, or 0 if the format is not in the table
func BytesPerPixel(format core1_0.Format) int {
	info, ok := formatInfo[format]
	if !ok {
		return 0
	}

	return (info.Bits + 7) / 8
}

// Aspect derives the image aspect that views and barriers over an image of this format must use
func Aspect(format core1_0.Format) core1_0.ImageAspectFlags {
	switch format {
	case core1_0.FormatD16UnsignedNormalized,
		core1_0.FormatD24X8UnsignedNormalizedPacked,
		core1_0.FormatD32SignedFloat:
		return core1_0.ImageAspectDepth
	case core1_0.FormatS8UnsignedInt:
		return core1_0.ImageAspectStencil
	case core1_0.FormatD16UnsignedNormalizedS8UnsignedInt,
		core1_0.FormatD24UnsignedNormalizedS8UnsignedInt,
		core1_0.FormatD32SignedFloatS8UnsignedInt:
		return core1_0.ImageAspectDepth | core1_0.ImageAspectStencil
	}

	return core1_0.ImageAspectColor
}

// CopyAspect is the aspect a buffer-to-image copy may target. Copies address one aspect at a time, so
// combined depth-stencil images are filled through their depth aspect.
func CopyAspect(aspect core1_0.ImageAspectFlags) core1_0.ImageAspectFlags {
	if aspect&core1_0.ImageAspectDepth != 0 && aspect&core1_0.ImageAspectStencil != 0 {
		return core1_0.ImageAspectDepth
	}

	return aspect
}

// IsDepthStencil reports whether the aspect includes depth or stencil data
func IsDepthStencil(aspect core1_0.ImageAspectFlags) bool {
	return aspect&(core1_0.ImageAspectDepth|core1_0.ImageAspectStencil) != 0
}

// ViewType picks the view type that covers every layer of an image of the given type
func ViewType(imageType core1_0.ImageType, arrayLayers int) core1_0.ImageViewType {
	switch imageType {
	case core1_0.ImageType1D:
		if arrayLayers > 1 {
			return core1_0.ImageViewType1DArray
		}
		return core1_0.ImageViewType1D
	case core1_0.ImageType3D:
		return core1_0.ImageViewType3D
	}

	if arrayLayers > 1 {
		return core1_0.ImageViewType2DArray
	}
	return core1_0.ImageViewType2D
}
