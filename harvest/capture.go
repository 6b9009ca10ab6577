package harvest

import (
	"github.com/use-agent/cfharvest/models"
	"github.com/ysmood/gson"
)

// widgetParams are the render options we care about.
type widgetParams struct {
	Sitekey     string
	CData       string
	Action      string
	ChlPageData string
}

// hookCapture is what readCapturedJS returns.
type hookCapture struct {
	Fired bool
	widgetParams
}

// introspection is what introspectJS returns.
type introspection struct {
	widgetParams
	ConfigSitekey string
}

// paramsFromJSON reads widgetParams off an evaluated object. Absent or
// non-string fields become "".
func paramsFromJSON(v gson.JSON) widgetParams {
	return widgetParams{
		Sitekey:     strField(v, "sitekey"),
		CData:       strField(v, "cData"),
		Action:      strField(v, "action"),
		ChlPageData: strField(v, "chlPageData"),
	}
}

func strField(v gson.JSON, key string) string {
	s, _ := v.Get(key).Val().(string)
	return s
}

func hookCaptureFromJSON(v gson.JSON) hookCapture {
	fired, _ := v.Get("fired").Val().(bool)
	return hookCapture{
		Fired:        fired,
		widgetParams: paramsFromJSON(v),
	}
}

func introspectionFromJSON(v gson.JSON) introspection {
	return introspection{
		widgetParams:  paramsFromJSON(v),
		ConfigSitekey: strField(v, "configSitekey"),
	}
}

// sitekey returns the widget's own key, falling back to the config's.
func (i introspection) sitekey() string {
	if i.Sitekey != "" {
		return i.Sitekey
	}
	return i.ConfigSitekey
}

// fillEmpty copies p's non-sitekey fields into r where r has none yet.
// The site key is resolved separately by the fallback chain.
func fillEmpty(r *models.ExtractionResult, p widgetParams) {
	if r.CData == "" {
		r.CData = p.CData
	}
	if r.Action == "" {
		r.Action = p.Action
	}
	if r.ChlPageData == "" {
		r.ChlPageData = p.ChlPageData
	}
}
