package browser

import "context"

// consentButtons are accept controls of common cookie/consent banners.
var consentButtons = []string{
	"#onetrust-accept-btn-handler",
	"#CybotCookiebotDialogBodyLevelButtonLevelOptinAllowAll",
	"button#accept-cookies",
	".cookie-consent button.accept",
	".eu-cookie-compliance-banner .agree-button",
	"button[aria-label='Accept all']",
	"//button[contains(., 'Accept')]",
}

const removeOverlaysJS = `() => {
	for (const el of document.querySelectorAll('*')) {
		const style = window.getComputedStyle(el);
		if (style.position === 'fixed' || style.position === 'sticky') {
			const z = parseInt(style.zIndex, 10);
			if (z >= 900) {
				el.remove();
			}
		}
	}
	const selectors = [
		'[class*="cookie"]', '[class*="consent"]', '[id*="cookie"]', '[id*="consent"]',
		'[class*="gdpr"]', '[id*="gdpr"]', '[class*="modal-backdrop"]',
	];
	for (const sel of selectors) {
		document.querySelectorAll(sel).forEach(el => {
			const style = window.getComputedStyle(el);
			if (style.position === 'fixed' || style.position === 'sticky' || style.position === 'absolute') {
				el.remove();
			}
		});
	}
	document.documentElement.style.overflow = '';
	document.body.style.overflow = '';
	return true;
}`

// DismissOverlays clicks the first visible consent button, then strips any
// remaining fixed overlays that would intercept clicks. Best effort.
func DismissOverlays(ctx context.Context, p Page) {
	for _, sel := range consentButtons {
		if ok, _ := p.Visible(ctx, sel); ok {
			if err := p.Click(ctx, sel); err == nil {
				break
			}
		}
	}
	_, _ = p.Eval(ctx, removeOverlaysJS)
}
