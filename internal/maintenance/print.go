package maintenance

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/woozymasta/gamestatus/internal/models"
)

const dash = "-"

// PrintStatus writes a human readable status with the MOTD rendered for the terminal.
func PrintStatus(out io.Writer, rec models.ServerRecord, st models.Status) error {
	var b strings.Builder

	fmt.Fprintf(&b, "target:   %s\n", rec.Target())
	if !st.Online {
		b.WriteString("online:   no\n")
		_, err := io.WriteString(out, b.String())
		return err
	}

	b.WriteString("online:   yes\n")
	fmt.Fprintf(&b, "protocol: %s\n", st.Protocol)
	writeField(&b, "name", st.Name)
	writeField(&b, "game", st.Game)
	writeField(&b, "map", st.Map)
	writeField(&b, "version", st.Version)
	writeField(&b, "os", st.OS)
	writeField(&b, "country", st.Country)
	fmt.Fprintf(&b, "players:  %s\n", playerCount(st))
	if st.Ping != nil {
		fmt.Fprintf(&b, "ping:     %dms\n", *st.Ping)
	}
	if len(st.Keywords) > 0 {
		fmt.Fprintf(&b, "keywords: %s\n", strings.Join(st.Keywords, ", "))
	}
	if len(st.MOTD) > 0 {
		fmt.Fprintf(&b, "motd:\n%s\n", st.MOTD.ANSI())
	}

	if _, err := io.WriteString(out, b.String()); err != nil {
		return err
	}

	if len(st.Players) > 0 {
		renderPlayers(out, st.Players)
	}

	return nil
}

func renderPlayers(out io.Writer, players []models.PlayerInfo) {
	tw := tablewriter.NewWriter(out)
	tw.SetHeader([]string{"Player", "Score", "Time", "Ping"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)

	for _, p := range players {
		duration := dash
		if p.Duration != nil {
			duration = strconv.FormatFloat(*p.Duration, 'f', 0, 64) + "s"
		}
		tw.Append([]string{p.Name, intOrDash(p.Score), duration, intOrDash(p.Ping)})
	}

	tw.Render()
}

func renderCheckTable(out io.Writer, records []models.ServerRecord, statuses map[string]models.Status) {
	tw := tablewriter.NewWriter(out)
	tw.SetHeader([]string{"ID", "Name", "Target", "Online", "Players", "Ping", "Version"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)

	for _, rec := range records {
		st := statuses[rec.ID]

		online := "no"
		if st.Online {
			online = "yes"
		}

		version := dash
		if st.Version != nil {
			version = *st.Version
		}

		tw.Append([]string{
			shortID(rec.ID),
			rec.Name,
			rec.Target(),
			online,
			playerCount(st),
			intOrDash(st.Ping),
			version,
		})
	}

	tw.Render()
}

func writeField(b *strings.Builder, name string, v *string) {
	if v == nil {
		return
	}
	fmt.Fprintf(b, "%-9s %s\n", name+":", *v)
}

func playerCount(st models.Status) string {
	if st.PlayersOnline == nil {
		return dash
	}
	if st.PlayersMax == nil {
		return strconv.Itoa(*st.PlayersOnline)
	}
	return fmt.Sprintf("%d/%d", *st.PlayersOnline, *st.PlayersMax)
}

func intOrDash(v *int) string {
	if v == nil {
		return dash
	}
	return strconv.Itoa(*v)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
