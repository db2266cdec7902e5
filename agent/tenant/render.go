package tenant

import (
	"fmt"
	"strings"
)

const rule = "═══════════════════════════════════════════════════════════════"

// Render turns a single organization's catalog into prompt text. An empty
// context renders as "".
func Render(tc *Context) string {
	if tc.Empty() {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n\n%s\nCONTEXTO DE EMPRESA AUTORIZADA\n%s\n\n", rule, rule)
	fmt.Fprintf(&b, "Estás trabajando para: %s\n", tc.Organization.Name)
	fmt.Fprintf(&b, "ID de Empresa: %s\n\n", tc.Organization.ID)

	if len(tc.Sites) > 0 {
		b.WriteString("ESTABLECIMIENTOS DISPONIBLES:\n")
		for _, s := range tc.Sites {
			fmt.Fprintf(&b, "  • %s (ID: %s)\n", s.Name, s.ID)
		}
		b.WriteString("\n")
	} else {
		b.WriteString("⚠️  No hay establecimientos registrados para esta empresa.\n\n")
	}

	if len(tc.Plots) > 0 {
		b.WriteString("CHACRAS DISPONIBLES:\n")
		for _, p := range tc.Plots {
			siteName := p.SiteName
			if siteName == "" {
				siteName = "N/A"
			}
			fmt.Fprintf(&b, "  • %s (ID: %s)\n", p.Name, p.ID)
			fmt.Fprintf(&b, "    └─ Establecimiento: %s (ID: %s)\n", siteName, p.SiteID)
		}
		b.WriteString("\n")
	} else {
		b.WriteString("⚠️  No hay chacras registradas para esta empresa.\n\n")
	}

	b.WriteString("INSTRUCCIONES IMPORTANTES PARA EL JSON:\n")
	b.WriteString("- Usá exactamente los nombres e IDs de estas listas, sin modificarlos\n")
	b.WriteString("- Si el usuario nombra una chacra, tomá también su establecimiento asociado\n")
	b.WriteString("- Si el usuario menciona algo que NO está en las listas, pedile que aclare antes de seguir\n")
	b.WriteString("- SOLO podés crear remitos para esta empresa y sus establecimientos/chacras\n\n")
	b.WriteString(rule)
	b.WriteString("\n")
	return b.String()
}

// RenderMulti lists every authorized organization, asks the model to
// disambiguate, then appends each organization's own block. ids fixes the
// order; unknown or empty contexts are skipped.
func RenderMulti(ids []string, contexts map[string]*Context) string {
	var present []*Context
	for _, id := range ids {
		if tc := contexts[id]; !tc.Empty() {
			present = append(present, tc)
		}
	}
	if len(present) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\nMÚLTIPLES EMPRESAS AUTORIZADAS\n%s\n\n", rule, rule)
	b.WriteString("Este número está autorizado para trabajar con las siguientes empresas:\n\n")
	for _, tc := range present {
		fmt.Fprintf(&b, "• %s (ID: %s)\n", tc.Organization.Name, tc.Organization.ID)
	}
	b.WriteString("\nPreguntá al usuario para cuál empresa quiere crear el remito antes de pedir otros datos.\n")
	b.WriteString("Una vez que la indique, usá solamente el contexto de esa empresa.\n\n")
	for _, tc := range present {
		b.WriteString(Render(tc))
	}
	return b.String()
}
