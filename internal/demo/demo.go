// Package demo holds the views the server can start by name.
package demo

import (
	"fmt"
	"strconv"
	"time"

	"livedom/dom/html"
	"livedom/dom/view"
)

// Catalog returns the demo views keyed by name. interval is the tick of
// every view.
func Catalog(interval time.Duration) map[string]view.Handler {
	return map[string]view.Handler{
		"counter": Counter(interval),
		"clock":   Clock(interval, time.Now),
		"feed":    Feed(interval, 5),
		"toggle":  Toggle(),
	}
}

// Counter shows a number that increases every interval. The number sits in
// a widget, so every tick reports the widget as changed.
func Counter(interval time.Duration) view.Handler {
	return func(rt *view.Runtime) error {
		value := html.NewNode("span", html.Class("value"), html.Children(html.Text("0")))
		counter := html.NewWidget(value)
		root := html.NewNode("div", html.Class("counter"),
			html.Children(html.NewNode("h1", html.Children(html.Text("Counter"))), counter))

		if err := rt.Show(root); err != nil {
			return err
		}

		for n := 1; ; n++ {
			if err := rt.Sleep(interval); err != nil {
				return err
			}
			err := rt.Update(func() error {
				value.SetText(strconv.Itoa(n))
				if n%2 == 0 {
					value.ClassList().Add("even")
				} else {
					value.ClassList().Remove("even")
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
	}
}

// Clock shows the time of now, refreshed every interval.
func Clock(interval time.Duration, now func() time.Time) view.Handler {
	return func(rt *view.Runtime) error {
		display := html.NewNode("time", html.Children(html.Text(now().Format(time.TimeOnly))))
		if err := rt.Show(html.NewNode("div", html.Class("clock"), html.Children(display))); err != nil {
			return err
		}

		for {
			if err := rt.Sleep(interval); err != nil {
				return err
			}
			t := now()
			err := rt.Update(func() error {
				display.SetAttribute("datetime", t.Format(time.RFC3339))
				display.SetText(t.Format(time.TimeOnly))
				return nil
			})
			if err != nil {
				return err
			}
		}
	}
}

// Feed appends an item every interval and keeps the last size items.
func Feed(interval time.Duration, size int) view.Handler {
	return func(rt *view.Runtime) error {
		list := html.NewNode("ul", html.Class("feed"))
		status := html.NewNode("p", html.Children(html.Text("waiting")))
		if err := rt.Show(html.NewNode("section", html.Children(status, list))); err != nil {
			return err
		}

		for n := 1; ; n++ {
			if err := rt.Sleep(interval); err != nil {
				return err
			}
			err := rt.Update(func() error {
				list.Append(html.NewNode("li", html.Children(html.Text(fmt.Sprintf("item %d", n)))))
				if list.Children().Len() > size {
					list.Remove(list.Children().At(0))
				}
				if n == 1 {
					status.Hide()
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
	}
}

// Toggle shows a panel that a click on its button, or a "toggle" event sent
// to the view, hides and shows again.
func Toggle() view.Handler {
	return func(rt *view.Runtime) error {
		button := html.NewNode("button", html.Attr("aria-pressed", "false"), html.Children(html.Text("Toggle")))
		panel := html.NewNode("div", html.Class("panel"), html.Children(html.Text("Hello")))
		if err := rt.Show(html.NewNode("div", html.Class("toggle"), html.Children(button, panel))); err != nil {
			return err
		}

		hidden := false
		for {
			ev, err := rt.AwaitInputEvent(rt.Context())
			if err != nil {
				return err
			}
			switch {
			case ev.Name == "toggle":
			case ev.Name == "click" && ev.Node == html.Element(button):
			default:
				continue
			}

			hidden = !hidden
			err = rt.Update(func() error {
				if hidden {
					panel.Hide()
					panel.SetAttribute("class", "panel hidden")
				} else {
					panel.Show()
					panel.SetAttribute("class", "panel")
				}
				button.SetAttribute("aria-pressed", strconv.FormatBool(hidden))
				return nil
			})
			if err != nil {
				return err
			}
		}
	}
}
