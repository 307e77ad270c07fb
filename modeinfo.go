package aquamarine

import (
	"fmt"
	"math"

	"github.com/ziyao233/aquamarine/drm/mode"
)

// Mode-timing flags mirrored from linux/drm_mode.h; only the ones the
// core itself inspects or sets are named here.
const (
	modeFlagNHSync     = 1 << 1
	modeFlagPVSync     = 1 << 2
	modeFlagInterlace  = 1 << 4
	modeFlagDoubleScan = 1 << 5
)

// Mode is the consumer-facing description of one display timing
// (spec.md §3). Modes carrying no Timing block are "custom" and must
// be synthesised via CVT at commit time (§4.F.1).
type Mode struct {
	Width, Height int
	RefreshMHz    int // milli-Hz
	Preferred     bool
	Timing        *mode.Info // nil for a custom mode
}

func (m Mode) String() string {
	return fmt.Sprintf("%dx%d@%.2fHz", m.Width, m.Height, float64(m.RefreshMHz)/1000.0)
}

// calculateRefresh computes a mode's refresh rate in milli-Hz from its
// low-level timing, per spec.md §4.D:
// ⌊(clock·10⁶/htotal + vtotal/2)/vtotal⌋, doubled for interlace, halved
// for doublescan, divided by vscan if >1.
func calculateRefresh(m mode.Info) int {
	if m.Htotal == 0 || m.Vtotal == 0 {
		return 0
	}

	refresh := (int64(m.Clock)*1000000/int64(m.Htotal) + int64(m.Vtotal)/2) / int64(m.Vtotal)

	if m.Flags&modeFlagInterlace != 0 {
		refresh *= 2
	}
	if m.Flags&modeFlagDoubleScan != 0 {
		refresh /= 2
	}
	if m.Vscan > 1 {
		refresh /= int64(m.Vscan)
	}

	return int(refresh)
}

// cvtTiming is the subset of VESA CVT (normal blanking, non-interlaced,
// no margins) output the core needs to build a mode.Info.
type cvtTiming struct {
	pixelClockKHz float64
	hFrontPorch   int
	hSyncWidth    int
	hBackPorch    int
	vFrontPorch   int
	vSyncWidth    int
	vBackPorch    int
	vLinesRound   int
	actFrameRate  float64
}

const (
	cvtMinVSyncBP  = 550.0 // microseconds
	cvtMinVPorch   = 3
	cvtHGranularity = 8.0
	cvtHSyncPercent = 8.0
)

// computeCVT derives VESA Coordinated Video Timings for hPixels x
// vLines at refreshHz, reduced blanking disabled, grounded on the CVT
// algorithm original_source/DRM.cpp invokes via di_cvt_compute.
func computeCVT(hPixels, vLines int, refreshHz float64) cvtTiming {
	if refreshHz <= 0 {
		refreshHz = 60
	}

	hDisplayRnd := int(math.Round(float64(hPixels)/cvtHGranularity)) * int(cvtHGranularity)
	vDisplayRnd := vLines

	vSync := cvtVSyncForAspect(hDisplayRnd, vDisplayRnd)

	hPeriodEst := ((1.0/refreshHz - cvtMinVSyncBP/1e6) /
		float64(vDisplayRnd+cvtMinVPorch)) * 1e6

	vSyncBP := math.Round(cvtMinVSyncBP / hPeriodEst)
	if vSyncBP < float64(vSync+cvtMinVPorch) {
		vSyncBP = float64(vSync + cvtMinVPorch)
	}
	vBackPorch := int(vSyncBP) - vSync

	vTotal := vDisplayRnd + cvtMinVPorch + int(vSyncBP)

	hPeriod := hPeriodEst
	actFieldRate := 1e6 / (hPeriod * float64(vTotal))
	// one correction pass toward the requested rate, as the CVT spec
	// prescribes.
	hPeriod = hPeriod * (actFieldRate / refreshHz)
	actFieldRate = 1e6 / (hPeriod * float64(vTotal))

	const idealBlankDuty = 20.0 // percent, margins disabled
	hBlank := float64(hDisplayRnd) * idealBlankDuty / (100.0 - idealBlankDuty)
	hBlankRnd := int(math.Round(hBlank/(2*cvtHGranularity))) * int(2*cvtHGranularity)
	hTotal := hDisplayRnd + hBlankRnd

	hSync := int(math.Round(cvtHSyncPercent / 100.0 * float64(hTotal) / cvtHGranularity)) * int(cvtHGranularity)
	hBackPorch := hBlankRnd/2 - hSync
	hFrontPorch := hBlankRnd - hSync - hBackPorch

	pixelClock := float64(hTotal) / hPeriod * 1000.0 // kHz

	return cvtTiming{
		pixelClockKHz: pixelClock,
		hFrontPorch:   hFrontPorch,
		hSyncWidth:    hSync,
		hBackPorch:    hBackPorch,
		vFrontPorch:   cvtMinVPorch,
		vSyncWidth:    vSync,
		vBackPorch:    vBackPorch,
		vLinesRound:   vDisplayRnd,
		actFrameRate:  actFieldRate,
	}
}

func cvtVSyncForAspect(h, v int) int {
	if v == 0 {
		return 10
	}
	switch {
	case round(float64(h)*9.0/16.0) == v:
		return 5
	case round(float64(h)*3.0/4.0) == v:
		return 4
	case round(float64(h)*4.0/5.0) == v:
		return 7
	case round(float64(h)*15.0/9.0) == v:
		return 7
	default:
		return 10
	}
}

func round(f float64) int { return int(math.Round(f)) }

// synthesizeMode builds a low-level mode.Info for a custom mode lacking
// a timing block, via CVT (spec.md §4.F.1). Unlike the original source,
// hdisplay is assigned from the horizontal pixel count, not the
// vertical one — the original's `hdisplay = MODE->pixelSize.y` is a
// flagged defect (spec.md §9); do not copy it.
func synthesizeMode(widthPx, heightPx, refreshMHz int) mode.Info {
	refreshHz := 60.0
	if refreshMHz > 0 {
		refreshHz = float64(refreshMHz) / 1000.0
	}

	t := computeCVT(widthPx, heightPx, refreshHz)

	hsyncStart := widthPx + t.hFrontPorch
	hsyncEnd := hsyncStart + t.hSyncWidth
	htotal := hsyncEnd + t.hBackPorch

	vsyncStart := t.vLinesRound + t.vFrontPorch
	vsyncEnd := vsyncStart + t.vSyncWidth
	vtotal := vsyncEnd + t.vBackPorch

	var name [mode.DisplayModeLen]uint8
	copy(name[:], []byte(fmt.Sprintf("%dx%d", widthPx, heightPx)))

	return mode.Info{
		Clock:      uint32(math.Round(t.pixelClockKHz)),
		Hdisplay:   uint16(widthPx),
		HsyncStart: uint16(hsyncStart),
		HsyncEnd:   uint16(hsyncEnd),
		Htotal:     uint16(htotal),
		Vdisplay:   uint16(t.vLinesRound),
		VsyncStart: uint16(vsyncStart),
		VsyncEnd:   uint16(vsyncEnd),
		Vtotal:     uint16(vtotal),
		Vscan:      1,
		Vrefresh:   uint32(math.Round(t.actFrameRate)),
		Flags:      modeFlagNHSync | modeFlagPVSync,
		Name:       name,
	}
}
