package storefront

import (
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"ntes/internal/config"
	"ntes/internal/contact"
	"ntes/internal/docstore"
	"ntes/internal/gallery"
	"ntes/internal/ui"
)

// Page is everything the home page renders.
type Page struct {
	Site     config.Site
	LogoURL  string
	Sections []docstore.Section
	Listing  gallery.Listing
	// Category filters the gallery; empty shows all work.
	Category     string
	GalleryError string
	Sent         bool
	Form         contact.Form
	FormError    string
}

func (p Page) section(typ string) (docstore.Section, bool) {
	for _, s := range p.Sections {
		if s.Type == typ {
			return s, true
		}
	}
	return docstore.Section{}, false
}

func (p Page) extraSections() []docstore.Section {
	var out []docstore.Section
	for _, s := range p.Sections {
		if s.Type == docstore.SectionText {
			out = append(out, s)
		}
	}
	return out
}

type offering struct {
	Title, Description string
}

var coreServices = []offering{
	{"Electrical & Auto Electrical Services", "Installation, maintenance, and troubleshooting for homes, businesses, and vehicles, including DB boxes, solar power, appliance setup, and fault repairs."},
	{"Technology & Business Solutions", "Website and app development, documentation (product plans, registrations), graphic design, software services, computer repairs, and installation."},
	{"Smart Farming Innovations", "Implementing automated irrigation, monitoring, renewable energy solutions, and modern farming techniques for sustainable agriculture."},
	{"Multipurpose Innovation & Maintenance", "Applying the Internet of Things (IoT) to design and maintain smart tools for solving everyday challenges."},
}

var hardwareRepairs = []string{
	"Laptop Screen Replacement",
	"Keyboard Replacement or Repair",
	"Battery Replacement",
	"Charging Port Repair",
	"Hard Drive (HDD/SSD) Upgrade or Replacement",
	"RAM Upgrade Replacement",
	"Motherboard Diagnostics and Repair",
	"Laptop Casing Repair",
	"Internal Cleaning (Fan/Dust Buildup)",
	"Cooling System Servicing",
	"Power Supply Unit (PSU) Replacement",
}

var softwareSupport = []string{
	"Operating System Installation (Windows, Linux, MacOS)",
	"System Upgrade and Optimization",
	"Virus, Malware, and Spyware Removal",
	"Data Backup and Recovery",
	"Software Installation (Microsoft Office, Antivirus, etc.)",
	"Driver Updates and Compatibility Fixes",
	"Boot Issues and Startup Error Troubleshooting",
	"Blue Screen (BSOD) Error Fixing",
	"Partitioning and Disk Formatting",
	"BIOS Update and Configuration",
	"Password Recovery and Reset",
	"Network Setup and Troubleshooting (Wi-Fi/LAN)",
}

var advantages = []offering{
	{"Experienced & Skilled Team", "Expertise in electrical, technology, and business solutions"},
	{"Innovation-Driven", "Integrating technology into everyday solutions"},
	{"Affordable & Reliable Services", "High-quality work at competitive rates"},
	{"Customer-Focused Approach", "Tailored services to meet unique client needs"},
}

type credential struct {
	Title, Subtitle, Value string
}

var credentials = []credential{
	{"CIPC Registered", "Companies and Intellectual Property Commission", "Certificate of Registration"},
	{"Registration Date", "Official Business Start Date", "18 March 2025"},
	{"Registration Number", "CIPC Official Number", "2025/242206/07"},
	{"Enterprise Status", "Verified Company Status", "In Business"},
}

var navLinks = []struct{ ID, Label string }{
	{"hero", "Home"},
	{"about", "About"},
	{"services", "Services"},
	{"pricing", "Pricing"},
	{"gallery", "Gallery"},
	{"certifications", "Certifications"},
	{"contact", "Contact"},
}

// HomePage renders the single-page storefront.
func HomePage(p Page) templ.Component {
	desc := p.Site.Legal + ": electrical, technology and business solutions."
	return ui.Document(p.Site.Name, desc, ui.Component(func(w *ui.Writer) {
		navigation(w, p)
		w.Raw("<main>")
		hero(w, p)
		about(w, p)
		services(w, p)
		techServices(w)
		pricing(w)
		whyChooseUs(w)
		for _, s := range p.extraSections() {
			w.Rawf(`<section class="section extra" id="section-%s"><h2>%s</h2>`, s.ID, s.Title)
			paragraphs(w, s.Body)
			w.Raw("</section>")
		}
		galleryBlock(w, p)
		certifications(w, p)
		contactBlock(w, p)
		w.Raw("</main>")
		w.Raw(`<footer class="footer"><p>&copy; `)
		w.Text(p.Site.Legal)
		w.Raw("</p></footer>")
	}))
}

func navigation(w *ui.Writer, p Page) {
	w.Raw(`<nav class="nav"><a class="brand" href="#hero">`)
	if p.LogoURL != "" {
		w.Raw(`<img class="logo"`)
		w.Src(p.LogoURL)
		w.Attr("alt", p.Site.Name+" logo")
		w.Raw(">")
	} else {
		w.Text(p.Site.Name)
	}
	w.Raw(`</a><ul>`)
	for _, l := range navLinks {
		w.Rawf(`<li><a href="#%s">%s</a></li>`, l.ID, l.Label)
	}
	w.Raw(`</ul></nav>`)
}

func hero(w *ui.Writer, p Page) {
	tagline := "Professional Business Services for Your Success"
	if s, ok := p.section(docstore.SectionHero); ok && strings.TrimSpace(s.Body) != "" {
		tagline = s.Body
	}
	w.Raw(`<section class="hero" id="hero"><p class="badge">Premium Technology Solutions</p><h1>`)
	w.Text(p.Site.Name)
	w.Raw(`</h1><p class="tagline">`)
	w.Text(tagline)
	w.Raw(`</p><div class="actions"><a class="button primary" href="#contact">Get In Touch</a>`)
	w.Raw(`<a class="button" href="#services">Explore Services</a></div></section>`)
}

func about(w *ui.Writer, p Page) {
	w.Raw(`<section class="section" id="about"><p class="badge">About Our Company</p><h2>`)
	w.Text(p.Site.Legal)
	w.Raw("</h2>")
	if s, ok := p.section(docstore.SectionAbout); ok {
		paragraphs(w, s.Body)
	}
	w.Raw(`<div class="cards two"><div class="card"><h3>Cutting-Edge Technology</h3><p>Leveraging the latest innovations to deliver superior solutions</p></div>`)
	w.Raw(`<div class="card"><h3>Rapid Growth</h3><p>Expanding our services to meet evolving market demands</p></div></div></section>`)
}

func services(w *ui.Writer, p Page) {
	w.Raw(`<section class="section" id="services"><p class="badge">What We Offer</p><h2>Our Services</h2>`)
	if s, ok := p.section(docstore.SectionServices); ok {
		paragraphs(w, s.Body)
	}
	w.Raw(`<div class="cards two">`)
	for _, o := range coreServices {
		w.Rawf(`<div class="card"><h3>%s</h3><p>%s</p></div>`, o.Title, o.Description)
	}
	w.Raw(`</div><div class="card highlight"><h3>Mobile Grooming Service (OMJ Exclusive Haircuts)</h3>`)
	w.Raw(`<p>A professional mobile grooming service offering quality haircuts at customers' convenience.</p></div></section>`)
}

func techServices(w *ui.Writer) {
	w.Raw(`<section class="section" id="tech-services"><p class="badge">Comprehensive Tech Support</p><h2>Computer &amp; Laptop Services</h2><div class="cards two">`)
	checklist(w, "Hardware Repairs", hardwareRepairs)
	checklist(w, "Software &amp; System Support", softwareSupport)
	w.Raw(`</div></section>`)
}

func checklist(w *ui.Writer, title string, items []string) {
	w.Raw(`<div class="card"><h3>` + title + `</h3><ul class="checks">`)
	for _, it := range items {
		w.Rawf("<li>%s</li>", it)
	}
	w.Raw("</ul></div>")
}

func pricing(w *ui.Writer) {
	w.Raw(`<section class="section" id="pricing"><p class="badge">Special Offer</p><h2>Business Solutions Price List</h2>`)
	for _, g := range Catalog {
		w.Rawf(`<div class="price-group" id="pricing-%s"><h3>%s</h3><div class="cards four">`, g.ID, g.Title)
		for _, it := range g.Items {
			w.Rawf(`<div class="card price"><h4>%s</h4>`, it.Name)
			if it.Note != "" {
				w.Rawf(`<p class="note">%s</p>`, it.Note)
			}
			w.Rawf(`<p><s class="regular">%s</s> <strong class="special">%s</strong>`, FormatRand(it.Regular), FormatRand(it.Special))
			if d := it.Discount(); d > 0 {
				w.Rawf(` <span class="discount">Save %d%%</span>`, d)
			}
			w.Raw("</p></div>")
		}
		w.Raw("</div></div>")
	}
	w.Raw("</section>")
}

func whyChooseUs(w *ui.Writer) {
	w.Raw(`<section class="section" id="why-us"><p class="badge">Our Advantages</p><h2>Why Choose Us</h2><div class="cards four">`)
	for _, a := range advantages {
		w.Rawf(`<div class="card"><h3>%s</h3><p>%s</p></div>`, a.Title, a.Description)
	}
	w.Raw("</div></section>")
}

func galleryBlock(w *ui.Writer, p Page) {
	w.Raw(`<section class="section" id="gallery"><p class="badge">Our Portfolio</p><h2>Gallery</h2>`)
	if p.GalleryError != "" {
		w.Rawf(`<p class="error">%s</p></section>`, p.GalleryError)
		return
	}
	w.Raw(`<div class="filters">`)
	filterLink(w, "", "All Work", len(p.Listing.Images), p.Category == "")
	for _, c := range p.Listing.Categories {
		filterLink(w, c.ID, c.Name, c.Count, p.Category == c.ID)
	}
	w.Raw("</div>")

	images := p.Listing.ImagesIn(p.Category)
	if len(images) == 0 {
		w.Raw(`<p class="empty">No images in this category yet.</p></section>`)
		return
	}
	w.Raw(`<div class="grid">`)
	for _, img := range images {
		w.Raw(`<figure><img loading="lazy"`)
		w.Src(img.URL)
		w.Attr("alt", img.Name)
		w.Rawf(`><figcaption>%s</figcaption></figure>`, gallery.Humanize(img.Category))
	}
	w.Raw("</div></section>")
}

func filterLink(w *ui.Writer, id, label string, count int, active bool) {
	href := "/#gallery"
	if id != "" {
		href = "/?category=" + id + "#gallery"
	}
	w.Raw(`<a class="filter`)
	if active {
		w.Raw(" active")
	}
	w.Raw(`"`)
	w.Href(href)
	w.Rawf(`>%s <span class="count">%s</span></a>`, label, strconv.Itoa(count))
}

func certifications(w *ui.Writer, p Page) {
	w.Raw(`<section class="section" id="certifications"><p class="badge">Trusted &amp; Verified</p><h2>Certifications &amp; Registration</h2><div class="cards four">`)
	for _, c := range credentials {
		w.Rawf(`<div class="card"><h3>%s</h3><p class="note">%s</p><p>%s</p></div>`, c.Title, c.Subtitle, c.Value)
	}
	w.Raw(`</div><div class="card"><p class="note">Registered Name</p><p>`)
	w.Text(p.Site.Legal)
	w.Raw("</p></div></section>")
}

func contactBlock(w *ui.Writer, p Page) {
	s := p.Site
	w.Raw(`<section class="section dark" id="contact"><p class="badge">Get In Touch</p><h2>Contact Us</h2>`)
	if p.Sent {
		w.Raw(`<div class="banner success" data-autohide="5000" role="status">Thank you! Your message has been sent. We will get back to you soon.</div>`)
	}
	w.Raw(`<div class="cards three">`)
	w.Raw(`<div class="card"><h3>Phone</h3><a`)
	w.Href("tel:" + strings.NewReplacer(" ", "").Replace(s.Phone))
	w.Rawf(`>%s</a></div>`, s.Phone)
	w.Raw(`<div class="card"><h3>Email</h3><a`)
	w.Href("mailto:" + s.Email)
	w.Rawf(`>%s</a></div>`, s.Email)
	w.Raw(`<div class="card"><h3>Facebook</h3><a target="_blank" rel="noopener noreferrer"`)
	w.Href(s.Facebook)
	w.Raw(`>@NTES</a></div></div>`)
	w.Rawf(`<div class="card visit"><h3>Visit Us</h3><p>%s</p></div>`, s.Address)

	f := p.Form
	w.Raw(`<form class="contact-form" method="post" action="/api/contacts">`)
	if p.FormError != "" {
		w.Rawf(`<p class="error" role="alert">%s</p>`, p.FormError)
	}
	input(w, "name", "Name", "text", f.Name, true)
	input(w, "email", "Email", "email", f.Email, true)
	input(w, "phone", "Phone", "tel", f.Phone, false)
	w.Raw(`<label>Service<select name="service"><option value="">Select a service</option>`)
	for _, opt := range serviceOptions() {
		w.Raw("<option")
		w.Attr("value", opt)
		if opt == f.Service {
			w.Raw(" selected")
		}
		w.Rawf(">%s</option>", opt)
	}
	w.Raw(`</select></label><label>Message<textarea name="message" rows="5" required>`)
	w.Text(f.Message)
	w.Raw(`</textarea></label><button class="button primary" type="submit">Send Message</button></form></section>`)
}

func serviceOptions() []string {
	out := make([]string, 0, len(coreServices)+len(Catalog))
	for _, o := range coreServices {
		out = append(out, o.Title)
	}
	for _, g := range Catalog {
		out = append(out, g.Title)
	}
	return out
}

func input(w *ui.Writer, name, label, typ, value string, required bool) {
	w.Rawf(`<label>%s<input name="%s" type="%s"`, label, name, typ)
	w.Attr("value", value)
	if required {
		w.Raw(" required")
	}
	w.Raw("></label>")
}

func paragraphs(w *ui.Writer, body string) {
	for _, para := range strings.Split(body, "\n\n") {
		if para = strings.TrimSpace(para); para != "" {
			w.Rawf("<p>%s</p>", para)
		}
	}
}
