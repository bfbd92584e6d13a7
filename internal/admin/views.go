package admin

import (
	"fmt"
	"strconv"
	"time"

	"github.com/a-h/templ"
	"github.com/dustin/go-humanize"

	"ntes/internal/backend"
	"ntes/internal/contact"
	"ntes/internal/docstore"
	"ntes/internal/gallery"
	"ntes/internal/ui"
	"ntes/internal/upload"
)

type loginView struct {
	SiteName      string
	Next          string
	Email         string
	Error         string
	DemoEnabled   bool
	DemoEmail     string
	DemoPassword  string
	SignupAllowed bool
}

func layout(site, title, active string, n notice, body func(w *ui.Writer)) templ.Component {
	return ui.Document(title+" | "+site+" Admin", "", ui.Component(func(w *ui.Writer) {
		w.Raw(`<div class="admin"><header><h1>`)
		w.Text(site + " Admin")
		w.Raw(`</h1><nav>`)
		for _, l := range []struct{ Path, Label string }{
			{Prefix + "/", "Dashboard"},
			{Prefix + "/gallery", "Gallery"},
			{Prefix + "/content", "Content"},
			{Prefix + "/contacts", "Inquiries"},
			{"/", "View site"},
		} {
			w.Raw("<a")
			w.Href(l.Path)
			if l.Label == active {
				w.Raw(` aria-current="page"`)
			}
			w.Rawf(">%s</a>", l.Label)
		}
		w.Raw(`</nav><form method="post" action="/admin/logout"><button type="submit">Log out</button></form></header>`)
		if n.Error != "" {
			w.Rawf(`<p class="error" role="alert">%s</p>`, n.Error)
		}
		if n.Message != "" {
			w.Rawf(`<p class="banner success" data-autohide="5000" role="status">%s</p>`, n.Message)
		}
		w.Rawf("<h2>%s</h2>", title)
		body(w)
		w.Raw("</div>")
	}))
}

func loginPage(v loginView) templ.Component {
	return ui.Document("Admin Login | "+v.SiteName, "", ui.Component(func(w *ui.Writer) {
		w.Raw(`<div class="login card"><h1>Admin Login</h1>`)
		if v.Error != "" {
			w.Rawf(`<p class="error" role="alert">%s</p>`, v.Error)
		}
		w.Raw(`<form method="post" action="/admin/login">`)
		w.Raw(`<input type="hidden" name="next"`)
		w.Attr("value", v.Next)
		w.Raw(`><label>Email<input type="email" name="email" required autocomplete="username"`)
		w.Attr("value", v.Email)
		w.Raw(`></label><label>Password<input type="password" name="password" required autocomplete="current-password"></label>`)
		w.Raw(`<button class="button primary" type="submit">Sign In</button></form>`)
		if v.DemoEnabled {
			w.Raw(`<div class="demo"><p><strong>Demo credentials</strong></p><p>Email: `)
			w.Text(v.DemoEmail)
			w.Raw(`<br>Password: `)
			w.Text(v.DemoPassword)
			w.Raw(`</p><form method="post" action="/admin/demo"><input type="hidden" name="next"`)
			w.Attr("value", v.Next)
			w.Raw(`><button type="submit">Use demo account</button></form></div>`)
		}
		if v.SignupAllowed {
			w.Raw(`<p><a href="/admin/signup">Create an admin account</a></p>`)
		}
		w.Raw(`<p><a href="/">Back to site</a></p></div>`)
	}))
}

func signupPage(v loginView) templ.Component {
	return ui.Document("Create Admin | "+v.SiteName, "", ui.Component(func(w *ui.Writer) {
		w.Raw(`<div class="login card"><h1>Create Admin Account</h1>`)
		if v.Error != "" {
			w.Rawf(`<p class="error" role="alert">%s</p>`, v.Error)
		}
		w.Raw(`<form method="post" action="/admin/signup"><label>Email<input type="email" name="email" required`)
		w.Attr("value", v.Email)
		w.Raw(`></label><label>Password<input type="password" name="password" minlength="6" required autocomplete="new-password"></label>`)
		w.Raw(`<button class="button primary" type="submit">Create Account</button></form>`)
		w.Raw(`<p><a href="/admin/login">Already have an account? Sign in</a></p></div>`)
	}))
}

type dashboardView struct {
	Probe      backend.ProbeResult
	Categories int
	Images     int
	NewLeads   int
	Batches    []upload.Batch
	Email      string
}

func dashboardPage(site string, n notice, v dashboardView) templ.Component {
	return layout(site, "Dashboard", "Dashboard", n, func(w *ui.Writer) {
		if v.Email != "" {
			w.Rawf(`<p>Signed in as %s</p>`, v.Email)
		}
		w.Raw(`<div class="card"><h3>Backend</h3><p class="status"><span class="dot`)
		if v.Probe.Connected {
			w.Rawf(` ok"></span>Connected (%s)</p>`, v.Probe.Latency.Round(time.Millisecond).String())
		} else {
			w.Raw(`"></span>Not connected</p>`)
			if v.Probe.Error != "" {
				w.Rawf(`<p class="error">%s</p>`, v.Probe.Error)
			}
			w.Raw(`<h4>Setup instructions</h4><ol>`)
			for _, step := range v.Probe.Instructions {
				w.Rawf("<li>%s</li>", step)
			}
			w.Raw("</ol>")
		}
		w.Raw(`</div><div class="cards three">`)
		w.Rawf(`<div class="card"><h3>%d</h3><p><a href="/admin/gallery">Gallery images</a></p></div>`, v.Images)
		w.Rawf(`<div class="card"><h3>%d</h3><p>Categories</p></div>`, v.Categories)
		w.Rawf(`<div class="card"><h3>%d</h3><p><a href="/admin/contacts">New inquiries</a></p></div>`, v.NewLeads)
		w.Raw(`</div>`)
		if len(v.Batches) > 0 {
			w.Raw(`<div class="card"><h3>Uploads in progress</h3>`)
			for _, b := range v.Batches {
				batchPanel(w, b)
			}
			w.Raw(`</div>`)
		}
	})
}

type galleryView struct {
	Categories []gallery.CategoryView
	Images     []docstore.Image
	Filter     string
	Batch      *upload.Batch
	MaxSize    int64
}

func galleryPage(site string, n notice, v galleryView) templ.Component {
	return layout(site, "Gallery", "Gallery", n, func(w *ui.Writer) {
		if v.Batch != nil {
			batchPanel(w, *v.Batch)
		}

		w.Raw(`<section class="card"><h3>Upload images</h3>`)
		w.Raw(`<form method="post" action="/admin/gallery/upload" enctype="multipart/form-data">`)
		w.Raw(`<label>Category<input name="category" list="categories" required`)
		w.Attr("value", v.Filter)
		w.Raw(`></label><datalist id="categories">`)
		for _, c := range v.Categories {
			w.Raw("<option")
			w.Attr("value", c.ID)
			w.Rawf(">%s</option>", c.Name)
		}
		w.Rawf(`</datalist><label>Files (max %s each)<input type="file" name="files" accept="image/*" multiple required></label>`, humanize.IBytes(uint64(v.MaxSize)))
		w.Raw(`<button class="button primary" type="submit">Upload</button></form></section>`)

		w.Raw(`<section class="card"><h3>Categories</h3>`)
		w.Raw(`<form method="post" action="/admin/gallery/categories"><input name="name" placeholder="New category" required><button type="submit">Add</button></form>`)
		w.Raw(`<table><thead><tr><th>Name</th><th>Images</th><th></th></tr></thead><tbody>`)
		for _, c := range v.Categories {
			w.Raw("<tr><td><a")
			w.Href(Prefix + "/gallery?category=" + c.ID)
			w.Rawf(">%s</a>", c.Name)
			if c.Auto {
				w.Raw(` <small class="note">auto</small>`)
			}
			w.Rawf("</td><td>%s</td><td>", strconv.Itoa(c.Count))
			w.Raw(`<form method="post"`)
			w.Attr("action", Prefix+"/gallery/categories/"+c.ID+"/rename")
			w.Raw(`><input name="name" required`)
			w.Attr("value", c.Name)
			w.Raw(`><button type="submit">Rename</button></form>`)
			w.Raw(`<form method="post"`)
			w.Attr("action", Prefix+"/gallery/categories/"+c.ID+"/delete")
			w.Attr("data-confirm", fmt.Sprintf("Delete category %q?", c.Name))
			w.Raw(`><button type="submit">Delete</button></form></td></tr>`)
		}
		w.Raw(`</tbody></table></section>`)

		w.Raw(`<section class="card"><h3>Images</h3><p class="filters"><a class="filter`)
		if v.Filter == "" {
			w.Raw(" active")
		}
		w.Raw(`" href="/admin/gallery">All</a>`)
		for _, c := range v.Categories {
			w.Raw(`<a class="filter`)
			if v.Filter == c.ID {
				w.Raw(" active")
			}
			w.Raw(`"`)
			w.Href(Prefix + "/gallery?category=" + c.ID)
			w.Rawf(">%s</a>", c.Name)
		}
		w.Raw("</p>")
		if len(v.Images) == 0 {
			w.Raw(`<p class="empty">No images yet.</p></section>`)
			return
		}
		w.Raw(`<div class="grid">`)
		for _, img := range v.Images {
			w.Raw(`<figure><img loading="lazy"`)
			w.Src(img.URL)
			w.Attr("alt", img.Name)
			w.Rawf(`><figcaption>%s &middot; %s`, img.Name, humanize.IBytes(uint64(img.Size)))
			if img.OriginalSize > img.Size {
				w.Rawf(" (was %s)", humanize.IBytes(uint64(img.OriginalSize)))
			}
			w.Raw(`<form method="post"`)
			w.Attr("action", Prefix+"/gallery/images/"+img.ID+"/delete")
			w.Attr("data-confirm", "Delete "+img.Name+"?")
			w.Raw(`><input type="hidden" name="category"`)
			w.Attr("value", v.Filter)
			w.Raw(`><button type="submit">Delete</button></form></figcaption></figure>`)
		}
		w.Raw("</div></section>")
	})
}

func batchPanel(w *ui.Writer, b upload.Batch) {
	w.Raw(`<ul class="tasks"`)
	if !b.Cleared {
		w.Attr("data-batch", b.ID)
	}
	w.Raw(">")
	for i, t := range b.Tasks {
		w.Rawf(`<li data-task="%d"><span>%s</span> <progress max="100"`, i, t.Name)
		if !(t.Indeterminate && t.Status == upload.StatusUploading) {
			w.Rawf(` value="%d"`, t.Progress)
		}
		w.Raw(`></progress> <span class="task-status">`)
		w.Text(string(t.Status))
		if t.Error != "" {
			w.Text(": " + t.Error)
		}
		w.Raw("</span></li>")
	}
	w.Raw("</ul>")
}

func contentPage(site string, n notice, sections []docstore.Section, logoURL string) templ.Component {
	return layout(site, "Content", "Content", n, func(w *ui.Writer) {
		w.Raw(`<section class="card"><h3>Logo</h3>`)
		if logoURL != "" {
			w.Raw(`<img class="logo" alt="Current logo"`)
			w.Src(logoURL)
			w.Raw(">")
		} else {
			w.Raw(`<p class="empty">No logo uploaded.</p>`)
		}
		w.Raw(`<form method="post" action="/admin/logo" enctype="multipart/form-data"><input type="file" name="logo" accept="image/*" required><button type="submit">Upload logo</button></form></section>`)

		w.Raw(`<section class="card"><h3>Sections</h3><form method="post" action="/admin/content"><button type="submit">Add section</button></form>`)
		for _, s := range sections {
			w.Raw(`<form class="section-edit" method="post"`)
			w.Attr("action", Prefix+"/content/"+s.ID)
			w.Raw(`><input type="hidden" name="type"`)
			w.Attr("value", s.Type)
			w.Rawf(`><p class="note">%s &middot; updated %s</p>`, s.Type, humanize.Time(s.UpdatedAt))
			w.Raw(`<label>Title<input name="title" required`)
			w.Attr("value", s.Title)
			w.Raw(`></label><label>Content<textarea name="body" rows="4">`)
			w.Text(s.Body)
			w.Raw(`</textarea></label><button type="submit">Save</button></form>`)
		}
		w.Raw("</section>")
	})
}

func contactsPage(site string, n notice, list []docstore.Contact) templ.Component {
	return layout(site, "Inquiries", "Inquiries", n, func(w *ui.Writer) {
		if len(list) == 0 {
			w.Raw(`<p class="empty">No inquiries yet.</p>`)
			return
		}
		w.Raw(`<table><thead><tr><th>Received</th><th>From</th><th>Service</th><th>Message</th><th>Status</th></tr></thead><tbody>`)
		for _, c := range list {
			w.Rawf(`<tr><td title="%s">%s</td><td>%s<br>`, c.CreatedAt.Format(time.RFC1123), humanize.Time(c.CreatedAt), c.Name)
			w.Raw("<a")
			w.Href("mailto:" + c.Email)
			w.Rawf(">%s</a>", c.Email)
			if c.Phone != "" {
				w.Rawf("<br>%s", c.Phone)
			}
			w.Rawf(`</td><td>%s</td><td>%s</td><td>`, c.Service, c.Message)
			w.Raw(`<form method="post"`)
			w.Attr("action", Prefix+"/contacts/"+c.ID+"/status")
			w.Raw(`><select name="status">`)
			for _, st := range contact.Statuses {
				w.Raw("<option")
				w.Attr("value", st)
				if st == c.Status {
					w.Raw(" selected")
				}
				w.Rawf(">%s</option>", st)
			}
			w.Raw(`</select><button type="submit">Update</button></form></td></tr>`)
		}
		w.Raw("</tbody></table>")
	})
}
