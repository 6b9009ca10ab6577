package harvest

// renderHookJS runs on every new document before the page's own scripts.
// It polls for turnstile.render and, on first sight, replaces it with a
// forwarding shim that copies the render options into window.__cfh and then
// calls the original with the same receiver and arguments, returning its
// result untouched.
const renderHookJS = `(() => {
	if (window.__cfh) return;
	window.__cfh = { hooked: false, fired: false, params: {} };
	const str = (v) => (v === undefined || v === null) ? '' : String(v);
	const timer = setInterval(() => {
		const ts = window.turnstile;
		if (!ts || typeof ts.render !== 'function' || window.__cfh.hooked) return;
		clearInterval(timer);
		const orig = ts.render;
		ts.render = function () {
			const opts = arguments[1];
			if (!window.__cfh.fired && opts && typeof opts === 'object') {
				window.__cfh.params = {
					sitekey: str(opts.sitekey),
					cData: str(opts.cData),
					action: str(opts.action),
					chlPageData: str(opts.chlPageData)
				};
				window.__cfh.fired = true;
			}
			return orig.apply(this, arguments);
		};
		window.__cfh.hooked = true;
	}, 100);
})();`

// readCapturedJS reads the render-hook blackboard back. Missing fields come
// back as empty strings.
const readCapturedJS = `() => {
	const bb = window.__cfh || {};
	const p = bb.params || {};
	return {
		fired: !!bb.fired,
		sitekey: p.sitekey || '',
		cData: p.cData || '',
		action: p.action || '',
		chlPageData: p.chlPageData || ''
	};
}`

// introspectJS reads the first already-created widget's parameters and the
// global config's site key straight off the turnstile object. Any shape it
// does not recognise yields empty strings.
const introspectJS = `() => {
	const out = { sitekey: '', cData: '', action: '', chlPageData: '', configSitekey: '' };
	const str = (v) => (v === undefined || v === null) ? '' : String(v);
	try {
		const ts = window.turnstile;
		if (!ts) return out;
		const widgets = ts._widgets;
		let list = [];
		if (widgets instanceof Map) {
			list = Array.from(widgets.values());
		} else if (widgets && typeof widgets === 'object') {
			list = Object.values(widgets);
		}
		const first = list[0];
		if (first && typeof first === 'object') {
			const p = first.params || first.config || first.options || first;
			out.sitekey = str(p.sitekey);
			out.cData = str(p.cData);
			out.action = str(p.action);
			out.chlPageData = str(p.chlPageData);
		}
		const cfg = ts._config;
		if (cfg && typeof cfg === 'object') {
			out.configSitekey = str(cfg.sitekey);
		}
	} catch (e) {}
	return out;
}`
